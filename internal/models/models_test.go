package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecalculate(t *testing.T) {
	o := DeliveryOrder{Items: []DeliveryOrderItem{
		{Quantity: 3, Price: 100, Volume: 0.5},
		{Quantity: 2, Price: 1000, Volume: 5},
	}}
	o.Recalculate()

	assert.Equal(t, 5, o.TotalQuantity)
	assert.InDelta(t, 11.5, o.TotalVolume, 1e-9)
	assert.InDelta(t, 2300, o.TotalAmount, 1e-9)
	assert.InDelta(t, 300, o.Items[0].Subtotal, 1e-9)
	assert.InDelta(t, 2000, o.Items[1].Subtotal, 1e-9)

	// Recalculating after items change starts from zero.
	o.Items = o.Items[:1]
	o.Recalculate()
	assert.Equal(t, 3, o.TotalQuantity)
	assert.InDelta(t, 300, o.TotalAmount, 1e-9)
}

func TestOrderIsFinal(t *testing.T) {
	for status, final := range map[string]bool{
		OrderPending:   false,
		OrderConfirmed: false,
		OrderInTransit: false,
		OrderOnTime:    true,
		OrderDelayed:   true,
		OrderCancelled: true,
	} {
		assert.Equal(t, final, DeliveryOrder{Status: status}.IsFinal(), status)
	}
}

func TestUserPermissions(t *testing.T) {
	staff := User{Role: RoleStaff, Permissions: []string{"orders"}}
	assert.True(t, staff.HasPermission("orders"))
	assert.False(t, staff.HasPermission("kpi"))

	assert.True(t, User{Role: RoleStaff, Permissions: []string{PermissionAll}}.HasPermission("kpi"))
	assert.True(t, User{Role: RoleAdmin}.HasPermission("users"))

	assert.True(t, IsKnownPermission("planning"))
	assert.True(t, IsKnownPermission(PermissionAll))
	assert.False(t, IsKnownPermission("payroll"))
}
