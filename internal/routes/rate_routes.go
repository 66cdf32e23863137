package routes

import (
	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/controllers"
)

func RateRoutes(r *gin.Engine) {
	rates := r.Group("/rates")
	{
		rates.GET("/quote", controllers.GetRateQuote)
		rates.GET("/settings", controllers.ListRateSettings)
		rates.PUT("/settings/:key", controllers.UpdateRateSetting)
	}
	r.PUT("/area-groups/:id/base-rate", controllers.UpdateAreaGroupBaseRate)
}
