package routes

import (
	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/controllers"
)

func MasterDataRoutes(r *gin.Engine) {
	r.GET("/provinces", controllers.ListProvinces)
	r.GET("/areas", controllers.ListAreas)
	r.GET("/area-groups", controllers.ListAreaGroups)
	r.GET("/clients", controllers.ListClients)
	r.GET("/clients/:id", controllers.GetClient)
	r.GET("/products", controllers.ListProducts)
	r.GET("/vehicles", controllers.ListVehicles)
}
