package models

import "gorm.io/gorm"

type Client struct {
	gorm.Model
	Code       string `json:"code" gorm:"uniqueIndex;not null"`
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	ProvinceID uint   `json:"province_id" gorm:"index"`
	AreaID     uint   `json:"area_id" gorm:"index"`
	Area       Area   `gorm:"foreignKey:AreaID" json:"area,omitempty"`

	// Drop-off point stored as WKB; the API speaks GeoJSON.
	Location []byte `gorm:"type:bytea" json:"-"`
}
