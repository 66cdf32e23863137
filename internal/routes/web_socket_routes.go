package routes

import (
	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine) {
	r.GET("/ws/notifications", controllers.HandleNotificationWebSocket)
}
