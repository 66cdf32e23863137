package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"delivery_backoffice/internal/config"
	"delivery_backoffice/internal/controllers"
	"delivery_backoffice/internal/geo"
	"delivery_backoffice/internal/logger"
	"delivery_backoffice/internal/middleware"
	"delivery_backoffice/internal/realtime"
	"delivery_backoffice/internal/routes"
	"delivery_backoffice/internal/seed"
	"delivery_backoffice/internal/services"
)

func main() {
	cfg := config.Load()

	// Initialize structured logging to file
	logger.Setup(cfg.LogFile, cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the database
	if err := config.InitDB(cfg); err != nil {
		log.Fatalf("database: %v", err)
	}
	seedMasterData(cfg.SeedFile)

	hub := realtime.NewHub()
	defer hub.Close()

	notifier := services.NewNotificationService(config.DB, hub)
	rates := services.NewRateService(config.DB, newRateCache(cfg))
	milestones := services.NewMilestoneService(config.DB, notifier)
	orders := services.NewOrderService(config.DB, rates, milestones, notifier)
	planner := services.NewPlannerService(config.DB, services.PlannerConfig{
		MaxOrdersPerBatch:     cfg.MaxOrdersPerBatch,
		LargeVehicleThreshold: cfg.LargeVehicleThreshold,
		Depot:                 geo.Point{Lat: cfg.DepotLat, Lng: cfg.DepotLng},
	}, notifier)

	controllers.Init(controllers.Services{
		Rates:         rates,
		Orders:        orders,
		Importer:      services.NewImporter(orders),
		Planner:       planner,
		Milestones:    milestones,
		KPI:           services.NewKPIService(config.DB),
		Notifications: notifier,
		Hub:           hub,
	})

	// Setup Gin router and wrap with CORS
	r := routes.SetupRouter()
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           middleware.EnableCORS(cfg.CORSOrigins, r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("Server starting")
		log.Printf("Server running at :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
}

func seedMasterData(path string) {
	if _, err := os.Stat(path); err != nil {
		logrus.WithField("path", path).Info("No seed file, skipping master data seed")
		return
	}
	file, err := seed.Load(path)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if err := seed.Apply(config.DB, file); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

// newRateCache returns a redis-backed cache, or nil when redis is not
// configured or unreachable at startup.
func newRateCache(cfg config.AppConfig) services.RateCache {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).WithField("addr", cfg.RedisAddr).Warn("Redis unavailable, rate cache disabled")
		rdb.Close()
		return nil
	}
	logrus.WithField("addr", cfg.RedisAddr).Info("Rate cache connected to redis")
	return services.NewRedisRateCache(rdb, cfg.RateCacheTTL)
}
