package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MilestonePending   = "pending"
	MilestoneActive    = "active"
	MilestoneCompleted = "completed"
)

// DeliveryMilestoneTemplate is one stage of the shared fulfilment sequence
// (e.g. "Packing", "Dispatched"). StandardDuration is in hours.
type DeliveryMilestoneTemplate struct {
	gorm.Model
	Name             string  `json:"name" binding:"required"`
	Sequence         int     `json:"sequence" gorm:"uniqueIndex"`
	StandardDuration float64 `json:"standard_duration"`
}

// DeliveryOrderMilestone is a template stage instantiated for one order.
// Durations and slack are in hours.
type DeliveryOrderMilestone struct {
	gorm.Model
	DeliveryOrderID  uint       `json:"delivery_order_id" gorm:"index"`
	TemplateID       uint       `json:"template_id"`
	Name             string     `json:"name"`
	Sequence         int        `json:"sequence"`
	Status           string     `json:"status" gorm:"default:pending"`
	PlannedStart     time.Time  `json:"planned_start"`
	PlannedEnd       time.Time  `json:"planned_end"`
	PlannedDuration  float64    `json:"planned_duration"`
	StandardDuration float64    `json:"standard_duration"`
	ActualStart      *time.Time `json:"actual_start"`
	ActualEnd        *time.Time `json:"actual_end"`
	ActualDuration   float64    `json:"actual_duration"`
	Slack            float64    `json:"slack"`
	IsCriticalPath   bool       `json:"is_critical_path"`
}
