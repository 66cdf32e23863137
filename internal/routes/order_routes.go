package routes

import (
	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/controllers"
)

func OrderRoutes(r *gin.Engine) {
	orders := r.Group("/orders")
	{
		orders.POST("", controllers.CreateOrder)
		orders.GET("", controllers.ListOrders)
		orders.POST("/import", controllers.ImportOrders)
		orders.GET("/:id", controllers.GetOrder)
		orders.PUT("/:id", controllers.UpdateOrder)
		orders.POST("/:id/confirm", controllers.ConfirmOrder)
		orders.POST("/:id/cancel", controllers.CancelOrder)

		orders.GET("/:id/milestones", controllers.ListOrderMilestones)
		orders.POST("/:id/milestones/advance", controllers.AdvanceMilestone)
		orders.PUT("/:id/milestones/:milestone_id", controllers.ReplanMilestone)
		orders.GET("/:id/critical-path", controllers.GetCriticalPath)
	}
	r.GET("/milestone-templates", controllers.ListMilestoneTemplates)
}
