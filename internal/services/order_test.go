package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery_backoffice/internal/models"
)

func TestCreateOrderPricesAndSeeds(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()

	in := orderInput(f.clientA, utc(2026, 10, 21, 0, 0),
		OrderItemInput{ProductID: f.productSmall.ID, Quantity: 2},
		OrderItemInput{ProductID: f.productBulky.ID, Quantity: 1},
	)
	in.AdditionalRateType = models.RateDropOtherZone

	order, err := s.orders.Create(ctx, in, "api")
	require.NoError(t, err)
	assert.Equal(t, "DO-20261020-0001", order.DONumber)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, f.areaN1.ID, order.AreaID, "area defaults to the client's")
	assert.Equal(t, 3, order.TotalQuantity)
	assert.InDelta(t, 6.0, order.TotalVolume, 1e-9)
	assert.Equal(t, 1200.0, order.TotalAmount)
	assert.Equal(t, 500.0, order.BaseRate)
	assert.Equal(t, 200.0, order.AdditionalRate)
	assert.Equal(t, 700.0, order.TotalRate)

	got, err := s.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Carton", got.Items[0].Product.Name)
	require.Len(t, got.Milestones, 3)
	assert.Equal(t, models.MilestoneActive, got.Milestones[0].Status)
	assert.Equal(t, models.MilestonePending, got.Milestones[2].Status)

	second, err := s.orders.Create(ctx, orderInput(f.clientB, utc(2026, 10, 21, 0, 0),
		OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}), "api")
	require.NoError(t, err)
	assert.Equal(t, "DO-20261020-0002", second.DONumber)

	require.NotEmpty(t, s.pub.published())
	assert.Equal(t, NotifyOrder, s.pub.published()[0].Type)
}

func TestCreateOrderPriceOverride(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))

	price := 80.0
	order, err := s.orders.Create(context.Background(), orderInput(f.clientA, utc(2026, 10, 21, 0, 0),
		OrderItemInput{ProductID: f.productSmall.ID, Quantity: 5, Price: &price}), "api")
	require.NoError(t, err)
	assert.Equal(t, 400.0, order.TotalAmount)
}

func TestCreateOrderValidation(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()
	delivery := utc(2026, 10, 21, 0, 0)
	item := OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}

	cases := map[string]func(in *OrderInput){
		"missing po":        func(in *OrderInput) { in.PONumber = " " },
		"unknown client":    func(in *OrderInput) { in.ClientID = 9999 },
		"unknown area":      func(in *OrderInput) { in.AreaID = 9999 },
		"ungrouped area":    func(in *OrderInput) { in.AreaID = f.loose.ID },
		"delivery too soon": func(in *OrderInput) { in.DeliveryDate = utc(2026, 10, 19, 0, 0) },
		"no items":          func(in *OrderInput) { in.Items = nil },
		"zero quantity":     func(in *OrderInput) { in.Items = []OrderItemInput{{ProductID: f.productSmall.ID}} },
		"unknown product":   func(in *OrderInput) { in.Items = []OrderItemInput{{ProductID: 9999, Quantity: 1}} },
		"unknown rate type": func(in *OrderInput) { in.AdditionalRateType = "express" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := orderInput(f.clientA, delivery, item)
			mutate(&in)
			_, err := s.orders.Create(ctx, in, "api")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.DeliveryOrder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateOrderReplacesItems(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()

	order, err := s.orders.Create(ctx, orderInput(f.clientA, utc(2026, 10, 21, 0, 0),
		OrderItemInput{ProductID: f.productSmall.ID, Quantity: 2}), "api")
	require.NoError(t, err)

	in := orderInput(f.clientA, utc(2026, 10, 22, 0, 0),
		OrderItemInput{ProductID: f.productBulky.ID, Quantity: 3})
	in.AdditionalRateType = models.RateDropSameZone
	updated, err := s.orders.Update(ctx, order.ID, in)
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, f.productBulky.ID, updated.Items[0].ProductID)
	assert.Equal(t, 3000.0, updated.TotalAmount)
	assert.Equal(t, 600.0, updated.TotalRate)
	assert.Equal(t, 22, updated.DeliveryDate.Day())
	assert.Equal(t, order.DONumber, updated.DONumber)

	_, err = s.orders.Confirm(ctx, order.ID)
	require.NoError(t, err)
	_, err = s.orders.Update(ctx, order.ID, in)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateOrderDateShiftsMilestones(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()

	order, err := s.orders.Create(ctx, orderInput(f.clientA, utc(2026, 10, 24, 0, 0),
		OrderItemInput{ProductID: f.productSmall.ID, Quantity: 2}), "api")
	require.NoError(t, err)
	require.Len(t, order.Milestones, 3)

	// Stretch loading to three hours so the shift has slack to preserve.
	_, err = s.milestones.Replan(ctx, order.ID, order.Milestones[1].ID, utc(2026, 10, 20, 10, 0), utc(2026, 10, 20, 13, 0))
	require.NoError(t, err)

	in := orderInput(f.clientA, utc(2026, 10, 24, 0, 0),
		OrderItemInput{ProductID: f.productSmall.ID, Quantity: 2})
	moved := utc(2026, 10, 23, 8, 0)
	in.OrderDate = &moved
	_, err = s.orders.Update(ctx, order.ID, in)
	require.NoError(t, err)

	ms, err := s.milestones.List(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.True(t, moved.Equal(ms[0].PlannedStart), "first stage starts at the new order date, got %s", ms[0].PlannedStart)
	assert.True(t, utc(2026, 10, 23, 10, 0).Equal(ms[0].PlannedEnd))
	assert.True(t, utc(2026, 10, 23, 13, 0).Equal(ms[1].PlannedEnd))
	assert.Equal(t, 2.0, ms[1].Slack)
	assert.True(t, utc(2026, 10, 23, 11, 0).Equal(ms[2].PlannedStart))

	// Same order date leaves the plan alone.
	_, err = s.orders.Update(ctx, order.ID, in)
	require.NoError(t, err)
	again, err := s.milestones.List(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, moved.Equal(again[0].PlannedStart))
}

func TestConfirmRepricesAndCancel(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()

	order, err := s.orders.Create(ctx, orderInput(f.clientC, utc(2026, 10, 21, 0, 0),
		OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}), "api")
	require.NoError(t, err)
	require.Equal(t, 800.0, order.TotalRate)

	_, err = s.rates.UpdateBaseRate(ctx, f.south.ID, 900)
	require.NoError(t, err)

	confirmed, err := s.orders.Confirm(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, confirmed.Status)
	assert.Equal(t, 900.0, confirmed.TotalRate)

	_, err = s.orders.Confirm(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cancelled, err := s.orders.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)

	_, err = s.orders.Cancel(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.orders.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersFiltersAndPages(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()
	item := OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}

	for i := 0; i < 3; i++ {
		_, err := s.orders.Create(ctx, orderInput(f.clientA, utc(2026, 10, 21, 0, 0), item), "api")
		require.NoError(t, err)
	}
	other, err := s.orders.Create(ctx, orderInput(f.clientB, utc(2026, 10, 23, 0, 0), item), "api")
	require.NoError(t, err)
	_, err = s.orders.Confirm(ctx, other.ID)
	require.NoError(t, err)

	list, total, err := s.orders.List(ctx, OrderFilter{ClientID: f.clientA.ID, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 2)

	list, total, err = s.orders.List(ctx, OrderFilter{ClientID: f.clientA.ID, PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 1)

	list, _, err = s.orders.List(ctx, OrderFilter{Status: models.OrderConfirmed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)

	day := utc(2026, 10, 23, 15, 0)
	list, total, err = s.orders.List(ctx, OrderFilter{DeliveryDate: &day})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Near Shop", list[0].Client.Name)
}
