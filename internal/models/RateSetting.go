package models

import "gorm.io/gorm"

// Additional rate types. An order with one of these carries the matching
// RateSetting amount on top of its base rate.
const (
	RateDropSameZone    = "drop_same_zone"
	RateDropOtherZone   = "drop_other_zone"
	RateAdvanceDelivery = "advance_delivery"
	RateSameClient      = "same_client"
)

var AdditionalRateTypes = []string{
	RateDropSameZone, RateDropOtherZone, RateAdvanceDelivery, RateSameClient,
}

type RateSetting struct {
	gorm.Model
	Key    string  `json:"key" gorm:"uniqueIndex;not null"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

func IsAdditionalRateType(t string) bool {
	for _, k := range AdditionalRateTypes {
		if k == t {
			return true
		}
	}
	return false
}
