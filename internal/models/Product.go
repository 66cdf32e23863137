package models

import "gorm.io/gorm"

type Product struct {
	gorm.Model
	SKU    string  `json:"sku" gorm:"uniqueIndex;not null"`
	Name   string  `json:"name"`
	Unit   string  `json:"unit"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"` // m³ per unit
}
