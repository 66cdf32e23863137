package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BatchPlanned   = "planned"
	BatchInTransit = "in_transit"
	BatchCompleted = "completed"
	BatchCancelled = "cancelled"
)

// DeliveryBatch groups the orders of one delivery date and area group
// that travel together on one vehicle.
type DeliveryBatch struct {
	gorm.Model
	BatchNo       string     `json:"batch_no" gorm:"uniqueIndex;not null"`
	DeliveryDate  time.Time  `json:"delivery_date" gorm:"index"`
	AreaGroupID   uint       `json:"area_group_id" gorm:"index"`
	AreaGroup     AreaGroup  `gorm:"foreignKey:AreaGroupID" json:"area_group,omitempty"`
	VehicleID     *uint      `json:"vehicle_id"`
	Vehicle       *Vehicle   `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	TotalOrders   int        `json:"total_orders"`
	TotalQuantity int        `json:"total_quantity"`
	TotalVolume   float64    `json:"total_volume"`
	TotalRate     float64    `json:"total_rate"`
	TotalAmount   float64    `json:"total_amount"`
	RouteDistance float64    `json:"route_distance"` // km
	Status        string     `json:"status" gorm:"index;default:planned"`
	DispatchedAt  *time.Time `json:"dispatched_at"`
	CompletedAt   *time.Time `json:"completed_at"`

	Orders []DeliveryOrder `gorm:"foreignKey:BatchID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"orders,omitempty"`
}

// Recalculate aggregates the totals of the attached orders.
func (b *DeliveryBatch) Recalculate() {
	b.TotalOrders = len(b.Orders)
	b.TotalQuantity = 0
	b.TotalVolume = 0
	b.TotalRate = 0
	b.TotalAmount = 0
	for _, o := range b.Orders {
		b.TotalQuantity += o.TotalQuantity
		b.TotalVolume += o.TotalVolume
		b.TotalRate += o.TotalRate
		b.TotalAmount += o.TotalAmount
	}
}
