package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderInTransit = "in_transit"
	OrderOnTime    = "on_time"
	OrderDelayed   = "delayed"
	OrderCancelled = "cancelled"
)

// DeliveryOrder is the internal record of a client's PO.
type DeliveryOrder struct {
	gorm.Model
	PONumber     string    `json:"po_number" gorm:"index"`
	DONumber     string    `json:"do_number" gorm:"uniqueIndex;not null"`
	OrderDate    time.Time `json:"order_date"`
	DeliveryDate time.Time `json:"delivery_date" gorm:"index"`
	ClientID     uint      `json:"client_id" gorm:"index"`
	Client       Client    `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ProvinceID   uint      `json:"province_id"`
	AreaID       uint      `json:"area_id" gorm:"index"`
	Status       string    `json:"status" gorm:"index;default:pending"`
	Notes        string    `json:"notes"`

	AdditionalRateType string  `json:"additional_rate_type"`
	BaseRate           float64 `json:"base_rate"`
	AdditionalRate     float64 `json:"additional_rate"`
	TotalRate          float64 `json:"total_rate"`

	TotalQuantity int     `json:"total_quantity"`
	TotalVolume   float64 `json:"total_volume"`
	TotalAmount   float64 `json:"total_amount"`

	BatchID      *uint `json:"batch_id" gorm:"index"`
	StopSequence int   `json:"stop_sequence"`

	Items      []DeliveryOrderItem      `gorm:"foreignKey:DeliveryOrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items,omitempty"`
	Milestones []DeliveryOrderMilestone `gorm:"foreignKey:DeliveryOrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"milestones,omitempty"`
}

type DeliveryOrderItem struct {
	gorm.Model
	DeliveryOrderID uint    `json:"delivery_order_id" gorm:"index"`
	ProductID       uint    `json:"product_id"`
	Product         Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	Volume          float64 `json:"volume"`
	Subtotal        float64 `json:"subtotal"`
}

// Recalculate rolls item subtotals up into the order totals.
func (o *DeliveryOrder) Recalculate() {
	o.TotalQuantity = 0
	o.TotalVolume = 0
	o.TotalAmount = 0
	for i := range o.Items {
		it := &o.Items[i]
		it.Subtotal = float64(it.Quantity) * it.Price
		o.TotalQuantity += it.Quantity
		o.TotalVolume += float64(it.Quantity) * it.Volume
		o.TotalAmount += it.Subtotal
	}
}

// IsFinal reports whether the order can no longer change status.
func (o DeliveryOrder) IsFinal() bool {
	switch o.Status {
	case OrderCancelled, OrderOnTime, OrderDelayed:
		return true
	}
	return false
}
