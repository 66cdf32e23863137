package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"delivery_backoffice/internal/logger"
	"delivery_backoffice/internal/middleware"
)

// SetupRouter builds the engine with every route group registered.
func SetupRouter() *gin.Engine {
	r := gin.New()

	// Middleware must be registered before the routes it wraps.
	r.Use(ginlog.SetLogger(
		ginlog.WithWriter(logger.Writer()),
		ginlog.WithSkipPath([]string{"/metrics", "/healthz"}),
		ginlog.WithUTC(true),
	))
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	MasterDataRoutes(r)
	RateRoutes(r)
	OrderRoutes(r)
	PlanningRoutes(r)
	KPIRoutes(r)
	NotificationRoutes(r)
	UserRoutes(r)
	WebSocketRoutes(r)

	return r
}
