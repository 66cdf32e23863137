package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func ListMilestoneTemplates(c *gin.Context) {
	templates, err := milestones.Templates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": templates})
}

func ListOrderMilestones(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := milestones.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// AdvanceMilestone completes the active milestone. The optional body field
// "at" (RFC3339) backdates the completion.
func AdvanceMilestone(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		At *time.Time `json:"at"`
	}
	// The body is optional and may arrive chunked, so bind whenever one exists.
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid advance input: " + err.Error()})
			return
		}
	}
	res, err := milestones.Advance(c.Request.Context(), id, body.At)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func ReplanMilestone(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := parseID(c, "milestone_id")
	if !ok {
		return
	}
	var body struct {
		PlannedStart time.Time `json:"planned_start" binding:"required"`
		PlannedEnd   time.Time `json:"planned_end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid milestone plan: " + err.Error()})
		return
	}
	m, err := milestones.Replan(c.Request.Context(), orderID, milestoneID, body.PlannedStart, body.PlannedEnd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": m})
}

func GetCriticalPath(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sum, err := milestones.CriticalPath(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sum})
}
