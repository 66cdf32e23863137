package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery_backoffice/internal/geo"
	"delivery_backoffice/internal/models"
)

func TestChunkOrders(t *testing.T) {
	orders := make([]models.DeliveryOrder, 7)
	chunks := ChunkOrders(orders, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[2], 1)

	assert.Len(t, ChunkOrders(orders, 0), 1)
	assert.Empty(t, ChunkOrders(nil, 3))
}

func TestPickVehicleType(t *testing.T) {
	assert.Equal(t, models.VehicleSmall, PickVehicleType(8, 8))
	assert.Equal(t, models.VehicleLarge, PickVehicleType(8.5, 8))
}

func TestSequenceStopsNearestNeighbour(t *testing.T) {
	far := geo.Point{Lat: 13.90, Lng: 100.60}
	mid := geo.Point{Lat: 13.80, Lng: 100.55}
	near := geo.Point{Lat: 13.76, Lng: 100.51}

	ordered, meters := SequenceStops(testDepot, []Stop{
		{OrderID: 1, Location: &far},
		{OrderID: 2},
		{OrderID: 3, Location: &near},
		{OrderID: 4, Location: &mid},
	})

	ids := make([]uint, 0, len(ordered))
	for _, s := range ordered {
		ids = append(ids, s.OrderID)
	}
	assert.Equal(t, []uint{3, 4, 1, 2}, ids)
	want := geo.Distance(testDepot, near) + geo.Distance(near, mid) + geo.Distance(mid, far)
	assert.InDelta(t, want, meters, 1e-6)
}

// confirmedOrder creates and confirms an order delivering on 2026-10-21.
func confirmedOrder(t *testing.T, s *stack, client models.Client, items ...OrderItemInput) models.DeliveryOrder {
	t.Helper()
	ctx := context.Background()
	order, err := s.orders.Create(ctx, orderInput(client, utc(2026, 10, 21, 0, 0), items...), "api")
	require.NoError(t, err)
	confirmed, err := s.orders.Confirm(ctx, order.ID)
	require.NoError(t, err)
	return *confirmed
}

func TestAllocateGroupsSequencesAndAssignsVehicles(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()
	bulky := OrderItemInput{ProductID: f.productBulky.ID, Quantity: 1}
	carton := OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}

	farOrder := confirmedOrder(t, s, f.clientA, bulky)
	nearOrder := confirmedOrder(t, s, f.clientB, bulky)
	southOrder := confirmedOrder(t, s, f.clientC, carton)
	// Pending orders are not planned.
	_, err := s.orders.Create(ctx, orderInput(f.clientA, utc(2026, 10, 21, 0, 0), carton), "api")
	require.NoError(t, err)

	batches, err := s.planner.Allocate(ctx, utc(2026, 10, 21, 12, 0), 0)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	north := batches[0]
	assert.Equal(t, "B-20261021-001", north.BatchNo)
	assert.Equal(t, f.north.ID, north.AreaGroupID)
	assert.Equal(t, 2, north.TotalOrders)
	assert.InDelta(t, 10.0, north.TotalVolume, 1e-9)
	assert.Equal(t, 1000.0, north.TotalRate)
	require.NotNil(t, north.VehicleID)
	assert.Equal(t, f.large.ID, *north.VehicleID, "10 m³ needs the large vehicle")
	require.Len(t, north.Orders, 2)
	assert.Equal(t, nearOrder.ID, north.Orders[0].ID)
	assert.Equal(t, farOrder.ID, north.Orders[1].ID)
	assert.Greater(t, north.RouteDistance, 0.0)

	south := batches[1]
	assert.Equal(t, "B-20261021-002", south.BatchNo)
	require.NotNil(t, south.VehicleID)
	assert.Equal(t, f.small.ID, *south.VehicleID)

	got, err := s.planner.GetBatch(ctx, north.ID)
	require.NoError(t, err)
	require.Len(t, got.Orders, 2)
	assert.Equal(t, 1, got.Orders[0].StopSequence)
	assert.Equal(t, nearOrder.ID, got.Orders[0].ID)
	assert.Equal(t, 2, got.Orders[1].StopSequence)

	var reloaded models.DeliveryOrder
	require.NoError(t, f.db.First(&reloaded, southOrder.ID).Error)
	require.NotNil(t, reloaded.BatchID)
	assert.Equal(t, south.ID, *reloaded.BatchID)

	// Nothing left to plan, and a second run does not duplicate batches.
	again, err := s.planner.Allocate(ctx, utc(2026, 10, 21, 0, 0), 0)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAllocateChunksAndRunsOutOfVehicles(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()
	carton := OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}

	for i := 0; i < 3; i++ {
		confirmedOrder(t, s, f.clientB, carton)
	}
	batches, err := s.planner.Allocate(ctx, utc(2026, 10, 21, 0, 0), 2)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 2, batches[0].TotalOrders)
	assert.Equal(t, 1, batches[1].TotalOrders)
	require.NotNil(t, batches[0].VehicleID)
	assert.Equal(t, f.small.ID, *batches[0].VehicleID)
	assert.Nil(t, batches[1].VehicleID, "the only small vehicle is already out that day")
}

func TestAllocateSkipsOutOfServiceVehicles(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	require.NoError(t, f.db.Model(&f.small).Update("in_service", false).Error)
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))

	confirmedOrder(t, s, f.clientC, OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1})
	batches, err := s.planner.Allocate(context.Background(), utc(2026, 10, 21, 0, 0), 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Nil(t, batches[0].VehicleID)
}

func TestRoutePlan(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()
	carton := OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}

	confirmedOrder(t, s, f.clientA, carton)
	confirmedOrder(t, s, f.clientB, carton)
	batches, err := s.planner.Allocate(ctx, utc(2026, 10, 21, 0, 0), 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	plan, err := s.planner.Route(ctx, batches[0].ID)
	require.NoError(t, err)
	require.Len(t, plan.Stops, 2)
	assert.Equal(t, "Near Shop", plan.Stops[0].ClientName)
	assert.Equal(t, "Far Mart", plan.Stops[1].ClientName)
	assert.InDelta(t, batches[0].RouteDistance, plan.TotalDistanceKm, 1e-6)
	assert.Equal(t, testDepot, plan.Depot)

	_, err = s.planner.Route(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchLifecycle(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 21, 9, 0))
	ctx := context.Background()
	carton := OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}

	order := confirmedOrder(t, s, f.clientB, carton)
	batches, err := s.planner.Allocate(ctx, utc(2026, 10, 21, 0, 0), 0)
	require.NoError(t, err)
	id := batches[0].ID

	_, err = s.planner.Complete(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition, "planned batches cannot complete")

	batch, err := s.planner.Dispatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.BatchInTransit, batch.Status)
	require.NotNil(t, batch.DispatchedAt)
	assert.Equal(t, models.OrderInTransit, batch.Orders[0].Status)

	batch, err = s.planner.Complete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, batch.Status)
	assert.Equal(t, models.OrderOnTime, batch.Orders[0].Status)
	assert.Equal(t, order.ID, batch.Orders[0].ID)

	_, err = s.planner.Cancel(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBatchCompletedLateIsDelayed(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()

	confirmedOrder(t, s, f.clientB, OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1})
	batches, err := s.planner.Allocate(ctx, utc(2026, 10, 21, 0, 0), 0)
	require.NoError(t, err)
	_, err = s.planner.Dispatch(ctx, batches[0].ID)
	require.NoError(t, err)

	s.planner.now = func() time.Time { return utc(2026, 10, 22, 9, 0) }
	batch, err := s.planner.Complete(ctx, batches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelayed, batch.Orders[0].Status)
}

func TestCancelBatchReleasesOrders(t *testing.T) {
	f := seedFixture(t, newTestDB(t))
	s := newStack(f.db, utc(2026, 10, 20, 8, 0))
	ctx := context.Background()
	carton := OrderItemInput{ProductID: f.productSmall.ID, Quantity: 1}

	a := confirmedOrder(t, s, f.clientA, carton)
	confirmedOrder(t, s, f.clientB, carton)
	batches, err := s.planner.Allocate(ctx, utc(2026, 10, 21, 0, 0), 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	id := batches[0].ID

	// Cancelling one order shrinks the batch.
	_, err = s.orders.Cancel(ctx, a.ID)
	require.NoError(t, err)
	batch, err := s.planner.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.TotalOrders)
	assert.Len(t, batch.Orders, 1)

	batch, err = s.planner.Cancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCancelled, batch.Status)
	assert.Empty(t, batch.Orders)
	assert.Zero(t, batch.TotalOrders)
	assert.Zero(t, batch.TotalQuantity)
	assert.Zero(t, batch.TotalVolume)
	assert.Zero(t, batch.TotalRate)
	assert.Zero(t, batch.TotalAmount)
	assert.Zero(t, batch.RouteDistance)

	var released []models.DeliveryOrder
	require.NoError(t, f.db.Where("status = ? AND batch_id IS NULL", models.OrderConfirmed).Find(&released).Error)
	assert.Len(t, released, 1)

	// Released orders and the freed vehicle can be planned again.
	again, err := s.planner.Allocate(ctx, utc(2026, 10, 21, 0, 0), 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "B-20261021-002", again[0].BatchNo)
	assert.NotNil(t, again[0].VehicleID)

	list, err := s.planner.ListBatches(ctx, BatchFilter{Status: models.BatchCancelled})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
