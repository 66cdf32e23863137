package routes

import (
	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/controllers"
)

func NotificationRoutes(r *gin.Engine) {
	r.POST("/notifications", controllers.CreateNotification)
	r.POST("/notifications/:id/read", controllers.MarkNotificationRead)
}
