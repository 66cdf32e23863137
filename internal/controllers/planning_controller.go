package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"delivery_backoffice/internal/models"
	"delivery_backoffice/internal/services"
)

// AllocateBatches plans the confirmed orders of one delivery date.
func AllocateBatches(c *gin.Context) {
	var body struct {
		DeliveryDate      string `json:"delivery_date" binding:"required"`
		MaxOrdersPerBatch int    `json:"max_orders_per_batch"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid allocation input: " + err.Error()})
		return
	}
	date, err := time.Parse(dateLayout, body.DeliveryDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delivery_date must be YYYY-MM-DD"})
		return
	}
	if body.MaxOrdersPerBatch < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_orders_per_batch must not be negative"})
		return
	}

	batches, err := planner.Allocate(c.Request.Context(), date, body.MaxOrdersPerBatch)
	if err != nil {
		respondError(c, err)
		return
	}
	if batches == nil {
		batches = []models.DeliveryBatch{}
	}
	c.JSON(http.StatusOK, gin.H{"data": batches})
}

func ListBatches(c *gin.Context) {
	deliveryDate, ok := queryDate(c, "delivery_date")
	if !ok {
		return
	}
	batches, err := planner.ListBatches(c.Request.Context(), services.BatchFilter{
		Status:       c.Query("status"),
		DeliveryDate: deliveryDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batches})
}

func GetBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	batch, err := planner.GetBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batch})
}

func GetBatchRoute(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	plan, err := planner.Route(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func DispatchBatch(c *gin.Context) {
	batchTransition(c, planner.Dispatch)
}

func CompleteBatch(c *gin.Context) {
	batchTransition(c, planner.Complete)
}

func CancelBatch(c *gin.Context) {
	batchTransition(c, planner.Cancel)
}

func batchTransition(c *gin.Context, fn func(ctx context.Context, id uint) (*models.DeliveryBatch, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	batch, err := fn(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batch})
}
