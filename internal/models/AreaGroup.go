package models

import "gorm.io/gorm"

// AreaGroup is a rate zone. Every order delivered to one of its areas
// starts from BaseRate.
type AreaGroup struct {
	gorm.Model
	Name     string  `json:"name" gorm:"uniqueIndex;not null"`
	BaseRate float64 `json:"base_rate"`
	Areas    []Area  `gorm:"foreignKey:AreaGroupID" json:"areas,omitempty"`
}
