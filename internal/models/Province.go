package models

import "gorm.io/gorm"

// Province is the top of the rate lookup hierarchy: province ⊃ area ⊃ area group.
type Province struct {
	gorm.Model
	Code  string `json:"code" gorm:"uniqueIndex;not null"`
	Name  string `json:"name" binding:"required"`
	Areas []Area `gorm:"foreignKey:ProvinceID" json:"areas,omitempty"`
}
