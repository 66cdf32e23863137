package routes

import (
	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/controllers"
)

func UserRoutes(r *gin.Engine) {
	users := r.Group("/users")
	{
		users.POST("", controllers.CreateUser)
		users.GET("", controllers.ListUsers)
		users.GET("/:id", controllers.GetUser)
		users.PUT("/:id", controllers.UpdateUser)
		users.DELETE("/:id", controllers.DeleteUser)

		users.GET("/:id/notifications", controllers.ListUserNotifications)
		users.GET("/:id/notifications/unread-count", controllers.GetUnreadCount)
		users.POST("/:id/notifications/read-all", controllers.MarkAllNotificationsRead)
	}
}
