package routes

import (
	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/controllers"
)

func KPIRoutes(r *gin.Engine) {
	r.GET("/kpi", controllers.GetKPIReport)
	r.PUT("/kpi/sales", controllers.RecordKPISales)
}
