package models

import "gorm.io/gorm"

// KPISale holds the actual sales a client booked in one month (YYYY-MM).
type KPISale struct {
	gorm.Model
	ClientID    uint    `json:"client_id" gorm:"uniqueIndex:idx_kpi_client_period"`
	Client      Client  `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Period      string  `json:"period" gorm:"uniqueIndex:idx_kpi_client_period;size:7"`
	ActualSales float64 `json:"actual_sales"`
}
