package routes

import (
	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/controllers"
)

func PlanningRoutes(r *gin.Engine) {
	r.POST("/planning/allocate", controllers.AllocateBatches)

	batches := r.Group("/batches")
	{
		batches.GET("", controllers.ListBatches)
		batches.GET("/:id", controllers.GetBatch)
		batches.GET("/:id/route", controllers.GetBatchRoute)
		batches.POST("/:id/dispatch", controllers.DispatchBatch)
		batches.POST("/:id/complete", controllers.CompleteBatch)
		batches.POST("/:id/cancel", controllers.CancelBatch)
	}
}
