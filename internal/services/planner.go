package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delivery_backoffice/internal/geo"
	"delivery_backoffice/internal/metrics"
	"delivery_backoffice/internal/models"
)

type PlannerConfig struct {
	MaxOrdersPerBatch     int
	LargeVehicleThreshold float64 // m³; batches above it need a large vehicle
	Depot                 geo.Point
}

// Stop is one drop on a batch route.
type Stop struct {
	OrderID  uint       `json:"order_id"`
	Location *geo.Point `json:"location,omitempty"`
}

// ChunkOrders splits orders into consecutive groups of at most size.
func ChunkOrders(orders []models.DeliveryOrder, size int) [][]models.DeliveryOrder {
	if size <= 0 {
		size = len(orders)
	}
	var chunks [][]models.DeliveryOrder
	for start := 0; start < len(orders); start += size {
		end := start + size
		if end > len(orders) {
			end = len(orders)
		}
		chunks = append(chunks, orders[start:end])
	}
	return chunks
}

// PickVehicleType chooses the vehicle size a batch of totalVolume needs.
func PickVehicleType(totalVolume, threshold float64) string {
	if totalVolume > threshold {
		return models.VehicleLarge
	}
	return models.VehicleSmall
}

// SequenceStops orders stops by nearest neighbour starting at depot and
// returns the driven distance in meters. Stops without a location keep
// their relative order and go last.
func SequenceStops(depot geo.Point, stops []Stop) ([]Stop, float64) {
	var located, unlocated []Stop
	for _, s := range stops {
		if s.Location != nil {
			located = append(located, s)
		} else {
			unlocated = append(unlocated, s)
		}
	}

	ordered := make([]Stop, 0, len(stops))
	var total float64
	cur := depot
	for len(located) > 0 {
		best := 0
		bestDist := geo.Distance(cur, *located[0].Location)
		for i := 1; i < len(located); i++ {
			if d := geo.Distance(cur, *located[i].Location); d < bestDist {
				best, bestDist = i, d
			}
		}
		next := located[best]
		ordered = append(ordered, next)
		total += bestDist
		cur = *next.Location
		located = append(located[:best], located[best+1:]...)
	}
	return append(ordered, unlocated...), total
}

type PlannerService struct {
	db       *gorm.DB
	cfg      PlannerConfig
	notifier *NotificationService
	now      func() time.Time
}

func NewPlannerService(db *gorm.DB, cfg PlannerConfig, notifier *NotificationService) *PlannerService {
	if cfg.MaxOrdersPerBatch <= 0 {
		cfg.MaxOrdersPerBatch = 10
	}
	return &PlannerService{db: db, cfg: cfg, notifier: notifier, now: time.Now}
}

// Allocate batches the confirmed, unbatched orders delivering on date:
// grouped by area group, chunked by maxPerBatch (config default when <= 0),
// each chunk given a vehicle and a stop sequence.
func (s *PlannerService) Allocate(ctx context.Context, date time.Time, maxPerBatch int) ([]models.DeliveryBatch, error) {
	if maxPerBatch <= 0 {
		maxPerBatch = s.cfg.MaxOrdersPerBatch
	}
	day := dayOf(date)
	nextDay := day.AddDate(0, 0, 1)

	var batches []models.DeliveryBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orders []models.DeliveryOrder
		if err := tx.Preload("Client").
			Where("status = ? AND batch_id IS NULL", models.OrderConfirmed).
			Where("delivery_date >= ? AND delivery_date < ?", day, nextDay).
			Order("id").
			Find(&orders).Error; err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}

		groups, err := groupByAreaGroup(tx, orders)
		if err != nil {
			return err
		}

		seq, err := batchCountOn(tx, day)
		if err != nil {
			return err
		}
		for _, g := range groups {
			for _, chunk := range ChunkOrders(g.orders, maxPerBatch) {
				seq++
				batch, err := s.createBatch(tx, day, g.group, chunk, seq)
				if err != nil {
					return err
				}
				batches = append(batches, batch)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(batches) > 0 {
		metrics.BatchesPlanned.Add(float64(len(batches)))
		logrus.WithFields(logrus.Fields{"date": day.Format("2006-01-02"), "batches": len(batches)}).Info("Delivery batches planned")
		s.notifier.Notify(ctx, nil, NotifyBatch, "Batches planned",
			fmt.Sprintf("%d batch(es) planned for %s", len(batches), day.Format("2006-01-02")))
	}
	return batches, nil
}

type areaGroupOrders struct {
	group  models.AreaGroup
	orders []models.DeliveryOrder
}

// groupByAreaGroup buckets orders by their area's group, ordered by group
// name. Orders in ungrouped areas are skipped.
func groupByAreaGroup(tx *gorm.DB, orders []models.DeliveryOrder) ([]areaGroupOrders, error) {
	areaIDs := make([]uint, 0, len(orders))
	for _, o := range orders {
		areaIDs = append(areaIDs, o.AreaID)
	}
	var areas []models.Area
	if err := tx.Preload("AreaGroup").Where("id IN ?", areaIDs).Find(&areas).Error; err != nil {
		return nil, err
	}
	areaGroup := make(map[uint]*models.AreaGroup, len(areas))
	for i := range areas {
		areaGroup[areas[i].ID] = areas[i].AreaGroup
	}

	byGroup := map[uint]*areaGroupOrders{}
	for _, o := range orders {
		g := areaGroup[o.AreaID]
		if g == nil {
			logrus.WithField("do_number", o.DONumber).Warn("Order area has no rate group, skipped by allocation")
			continue
		}
		bucket, ok := byGroup[g.ID]
		if !ok {
			bucket = &areaGroupOrders{group: *g}
			byGroup[g.ID] = bucket
		}
		bucket.orders = append(bucket.orders, o)
	}

	out := make([]areaGroupOrders, 0, len(byGroup))
	for _, b := range byGroup {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].group.Name < out[j].group.Name })
	return out, nil
}

func batchCountOn(tx *gorm.DB, day time.Time) (int, error) {
	var count int64
	err := tx.Unscoped().Model(&models.DeliveryBatch{}).
		Where("batch_no LIKE ?", batchPrefix(day)+"%").
		Count(&count).Error
	return int(count), err
}

func batchPrefix(day time.Time) string {
	return fmt.Sprintf("B-%s-", day.Format("20060102"))
}

func (s *PlannerService) createBatch(tx *gorm.DB, day time.Time, group models.AreaGroup, orders []models.DeliveryOrder, seq int) (models.DeliveryBatch, error) {
	batch := models.DeliveryBatch{
		BatchNo:      fmt.Sprintf("%s%03d", batchPrefix(day), seq),
		DeliveryDate: day,
		AreaGroupID:  group.ID,
		Status:       models.BatchPlanned,
		Orders:       orders,
	}
	batch.Recalculate()

	vehicle, err := availableVehicle(tx, day, PickVehicleType(batch.TotalVolume, s.cfg.LargeVehicleThreshold))
	if err != nil {
		return batch, err
	}
	if vehicle != nil {
		batch.VehicleID = &vehicle.ID
		batch.Vehicle = vehicle
	}

	ordered, meters := SequenceStops(s.cfg.Depot, stopsOf(orders))
	batch.RouteDistance = meters / 1000

	if err := tx.Omit("Orders", "Vehicle", "AreaGroup").Create(&batch).Error; err != nil {
		return batch, err
	}

	byID := make(map[uint]*models.DeliveryOrder, len(orders))
	for i := range batch.Orders {
		byID[batch.Orders[i].ID] = &batch.Orders[i]
	}
	sorted := make([]models.DeliveryOrder, 0, len(ordered))
	for i, stop := range ordered {
		o := byID[stop.OrderID]
		o.BatchID = &batch.ID
		o.StopSequence = i + 1
		if err := tx.Model(&models.DeliveryOrder{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
			"batch_id":      batch.ID,
			"stop_sequence": o.StopSequence,
		}).Error; err != nil {
			return batch, err
		}
		sorted = append(sorted, *o)
	}
	batch.Orders = sorted
	batch.AreaGroup = group
	return batch, nil
}

// availableVehicle returns the first in-service vehicle of vehicleType not
// already used on day, or nil.
func availableVehicle(tx *gorm.DB, day time.Time, vehicleType string) (*models.Vehicle, error) {
	busy := tx.Model(&models.DeliveryBatch{}).
		Select("vehicle_id").
		Where("vehicle_id IS NOT NULL AND status <> ?", models.BatchCancelled).
		Where("delivery_date >= ? AND delivery_date < ?", day, day.AddDate(0, 0, 1))

	var v models.Vehicle
	err := tx.Where("in_service = ? AND type = ?", true, vehicleType).
		Where("id NOT IN (?)", busy).
		Order("id").
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithFields(logrus.Fields{"type": vehicleType, "date": day.Format("2006-01-02")}).Warn("No vehicle available for batch")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func stopsOf(orders []models.DeliveryOrder) []Stop {
	stops := make([]Stop, 0, len(orders))
	for _, o := range orders {
		st := Stop{OrderID: o.ID}
		if p, ok := geo.DecodePoint(o.Client.Location); ok {
			st.Location = &p
		}
		stops = append(stops, st)
	}
	return stops
}

// refreshBatchTotals recomputes a batch's aggregates from its current orders.
func refreshBatchTotals(tx *gorm.DB, batchID uint) error {
	var batch models.DeliveryBatch
	if err := tx.Preload("Orders").First(&batch, batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	batch.Recalculate()
	return tx.Model(&models.DeliveryBatch{}).Where("id = ?", batch.ID).Updates(map[string]interface{}{
		"total_orders":   batch.TotalOrders,
		"total_quantity": batch.TotalQuantity,
		"total_volume":   batch.TotalVolume,
		"total_rate":     batch.TotalRate,
		"total_amount":   batch.TotalAmount,
	}).Error
}

// BatchFilter narrows ListBatches. Zero values are ignored.
type BatchFilter struct {
	Status       string
	DeliveryDate *time.Time
}

func (s *PlannerService) ListBatches(ctx context.Context, f BatchFilter) ([]models.DeliveryBatch, error) {
	q := s.db.WithContext(ctx).Preload("AreaGroup").Preload("Vehicle")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DeliveryDate != nil {
		day := dayOf(*f.DeliveryDate)
		q = q.Where("delivery_date >= ? AND delivery_date < ?", day, day.AddDate(0, 0, 1))
	}
	var batches []models.DeliveryBatch
	err := q.Order("delivery_date desc, batch_no").Find(&batches).Error
	return batches, err
}

func (s *PlannerService) GetBatch(ctx context.Context, id uint) (*models.DeliveryBatch, error) {
	var batch models.DeliveryBatch
	err := s.db.WithContext(ctx).
		Preload("AreaGroup").
		Preload("Vehicle").
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("stop_sequence, id") }).
		Preload("Orders.Client").
		First(&batch, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("batch %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &batch, nil
}

// RouteStop is one leg of a batch route.
type RouteStop struct {
	Sequence      int        `json:"sequence"`
	OrderID       uint       `json:"order_id"`
	DONumber      string     `json:"do_number"`
	ClientName    string     `json:"client_name"`
	Location      *geo.Point `json:"location,omitempty"`
	LegDistanceKm float64    `json:"leg_distance_km"`
	Bearing       float64    `json:"bearing"`
}

type RoutePlan struct {
	BatchID         uint        `json:"batch_id"`
	BatchNo         string      `json:"batch_no"`
	Depot           geo.Point   `json:"depot"`
	Stops           []RouteStop `json:"stops"`
	TotalDistanceKm float64     `json:"total_distance_km"`
}

// Route describes the planned stop sequence of a batch leg by leg.
func (s *PlannerService) Route(ctx context.Context, batchID uint) (RoutePlan, error) {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return RoutePlan{}, err
	}
	plan := RoutePlan{BatchID: batch.ID, BatchNo: batch.BatchNo, Depot: s.cfg.Depot, Stops: []RouteStop{}}
	cur := s.cfg.Depot
	for i, o := range batch.Orders {
		rs := RouteStop{Sequence: i + 1, OrderID: o.ID, DONumber: o.DONumber, ClientName: o.Client.Name}
		if p, ok := geo.DecodePoint(o.Client.Location); ok {
			rs.Location = &p
			rs.LegDistanceKm = geo.Distance(cur, p) / 1000
			rs.Bearing = geo.Bearing(cur, p)
			cur = p
		}
		plan.TotalDistanceKm += rs.LegDistanceKm
		plan.Stops = append(plan.Stops, rs)
	}
	return plan, nil
}

// Dispatch moves a planned batch and its orders in transit.
func (s *PlannerService) Dispatch(ctx context.Context, id uint) (*models.DeliveryBatch, error) {
	err := s.transition(ctx, id, []string{models.BatchPlanned}, func(tx *gorm.DB, b *models.DeliveryBatch) error {
		now := s.now()
		b.Status = models.BatchInTransit
		b.DispatchedAt = &now
		if err := tx.Model(&models.DeliveryBatch{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
			"status": b.Status, "dispatched_at": now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.DeliveryOrder{}).
			Where("batch_id = ? AND status = ?", b.ID, models.OrderConfirmed).
			Update("status", models.OrderInTransit).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetBatch(ctx, id)
}

// Complete closes an in-transit batch. Its in-transit orders settle as
// on_time when completed by the end of the delivery day, delayed otherwise.
func (s *PlannerService) Complete(ctx context.Context, id uint) (*models.DeliveryBatch, error) {
	var delayed bool
	err := s.transition(ctx, id, []string{models.BatchInTransit}, func(tx *gorm.DB, b *models.DeliveryBatch) error {
		now := s.now()
		if err := tx.Model(&models.DeliveryBatch{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
			"status": models.BatchCompleted, "completed_at": now,
		}).Error; err != nil {
			return err
		}
		status := models.OrderOnTime
		if now.After(dayOf(b.DeliveryDate).AddDate(0, 0, 1)) {
			status = models.OrderDelayed
			delayed = true
		}
		return tx.Model(&models.DeliveryOrder{}).
			Where("batch_id = ? AND status = ?", b.ID, models.OrderInTransit).
			Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	batch, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if delayed {
		s.notifier.Notify(ctx, nil, NotifyDelay, "Batch delivered late",
			fmt.Sprintf("Batch %s completed after its delivery date", batch.BatchNo))
	}
	return batch, nil
}

// Cancel releases a batch's orders back to confirmed.
func (s *PlannerService) Cancel(ctx context.Context, id uint) (*models.DeliveryBatch, error) {
	err := s.transition(ctx, id, []string{models.BatchPlanned, models.BatchInTransit}, func(tx *gorm.DB, b *models.DeliveryBatch) error {
		if err := tx.Model(&models.DeliveryBatch{}).Where("id = ?", b.ID).
			Update("status", models.BatchCancelled).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DeliveryOrder{}).
			Where("batch_id = ? AND status IN ?", b.ID, []string{models.OrderConfirmed, models.OrderInTransit}).
			Update("status", models.OrderConfirmed).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DeliveryOrder{}).
			Where("batch_id = ?", b.ID).
			Updates(map[string]interface{}{"batch_id": nil, "stop_sequence": 0}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DeliveryBatch{}).Where("id = ?", b.ID).
			Update("route_distance", 0).Error; err != nil {
			return err
		}
		return refreshBatchTotals(tx, b.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetBatch(ctx, id)
}

func (s *PlannerService) transition(ctx context.Context, id uint, from []string, apply func(tx *gorm.DB, b *models.DeliveryBatch) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch models.DeliveryBatch
		if err := tx.First(&batch, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("batch %d: %w", id, ErrNotFound)
			}
			return err
		}
		allowed := false
		for _, st := range from {
			if batch.Status == st {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: batch %s is %s", ErrInvalidTransition, batch.BatchNo, batch.Status)
		}
		return apply(tx, &batch)
	})
}
