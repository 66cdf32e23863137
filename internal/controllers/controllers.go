package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delivery_backoffice/internal/realtime"
	"delivery_backoffice/internal/services"
)

// Service handles used by the handlers, set once at startup by Init.
var (
	rates         *services.RateService
	orders        *services.OrderService
	importer      *services.Importer
	planner       *services.PlannerService
	milestones    *services.MilestoneService
	kpi           *services.KPIService
	notifications *services.NotificationService
	hub           *realtime.Hub
)

type Services struct {
	Rates         *services.RateService
	Orders        *services.OrderService
	Importer      *services.Importer
	Planner       *services.PlannerService
	Milestones    *services.MilestoneService
	KPI           *services.KPIService
	Notifications *services.NotificationService
	Hub           *realtime.Hub
}

func Init(s Services) {
	rates = s.Rates
	orders = s.Orders
	importer = s.Importer
	planner = s.Planner
	milestones = s.Milestones
	kpi = s.KPI
	notifications = s.Notifications
	hub = s.Hub
}

const dateLayout = "2006-01-02"

// respondError maps a service error onto an HTTP status.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrUnknownRateType),
		errors.Is(err, services.ErrNoRateGroup):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case isUniqueViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": "record already exists"})
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error: " + err.Error()})
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// parseID reads a numeric path parameter, answering 400 when it is not one.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
		return nil, false
	}
	return &d, true
}

func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}
