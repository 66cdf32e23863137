package models

import "gorm.io/gorm"

type Area struct {
	gorm.Model
	Name        string     `json:"name" gorm:"uniqueIndex;not null"`
	ProvinceID  uint       `json:"province_id" gorm:"index"`
	Province    Province   `gorm:"foreignKey:ProvinceID" json:"province,omitempty"`
	AreaGroupID *uint      `json:"area_group_id" gorm:"index"`
	AreaGroup   *AreaGroup `gorm:"foreignKey:AreaGroupID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"area_group,omitempty"`
}
