package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func RecordKPISales(c *gin.Context) {
	var body struct {
		ClientID    uint     `json:"client_id" binding:"required"`
		Period      string   `json:"period" binding:"required"`
		ActualSales *float64 `json:"actual_sales" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sales input: " + err.Error()})
		return
	}
	sale, err := kpi.RecordSales(c.Request.Context(), body.ClientID, body.Period, *body.ActualSales)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sale})
}

// GetKPIReport reports the given period, defaulting to the current month.
func GetKPIReport(c *gin.Context) {
	period := c.DefaultQuery("period", time.Now().Format("2006-01"))
	report, err := kpi.Report(c.Request.Context(), period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}
