package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func GetRateQuote(c *gin.Context) {
	areaID, ok := queryUint(c, "area_id")
	if !ok {
		return
	}
	if areaID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "area_id is required"})
		return
	}
	quote, err := rates.Quote(c.Request.Context(), areaID, c.Query("additional_rate_type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func ListRateSettings(c *gin.Context) {
	settings, err := rates.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func UpdateRateSetting(c *gin.Context) {
	var body struct {
		Amount *float64 `json:"amount" binding:"required"`
		Label  *string  `json:"label"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rate setting: " + err.Error()})
		return
	}
	setting, err := rates.UpdateSetting(c.Request.Context(), c.Param("key"), *body.Amount, body.Label)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": setting})
}

func UpdateAreaGroupBaseRate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		BaseRate *float64 `json:"base_rate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base rate: " + err.Error()})
		return
	}
	group, err := rates.UpdateBaseRate(c.Request.Context(), id, *body.BaseRate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": group})
}
