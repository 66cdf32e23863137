package models

import "gorm.io/gorm"

const (
	VehicleSmall = "small"
	VehicleLarge = "large"
)

type Vehicle struct {
	gorm.Model
	PlateNo   string  `json:"plate_no" gorm:"uniqueIndex;not null"`
	Type      string  `json:"type"` // "small", "large"
	Capacity  float64 `json:"capacity"`
	InService bool    `json:"in_service" gorm:"default:true"`
}
