package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delivery_backoffice/internal/metrics"
	"delivery_backoffice/internal/models"
)

type OrderItemInput struct {
	ProductID uint     `json:"product_id" binding:"required"`
	Quantity  int      `json:"quantity" binding:"required"`
	Price     *float64 `json:"price"`
}

// OrderInput is the intake payload. AreaID defaults to the client's area
// and OrderDate to now.
type OrderInput struct {
	PONumber           string           `json:"po_number" binding:"required"`
	ClientID           uint             `json:"client_id" binding:"required"`
	AreaID             uint             `json:"area_id"`
	OrderDate          *time.Time       `json:"order_date"`
	DeliveryDate       time.Time        `json:"delivery_date" binding:"required"`
	AdditionalRateType string           `json:"additional_rate_type"`
	Notes              string           `json:"notes"`
	Items              []OrderItemInput `json:"items" binding:"required,min=1,dive"`
}

// OrderFilter narrows List. Zero values are ignored.
type OrderFilter struct {
	Status       string
	ClientID     uint
	DeliveryDate *time.Time
	Page         int
	PageSize     int
}

type OrderService struct {
	db         *gorm.DB
	rates      *RateService
	milestones *MilestoneService
	notifier   *NotificationService
	now        func() time.Time
}

func NewOrderService(db *gorm.DB, rates *RateService, milestones *MilestoneService, notifier *NotificationService) *OrderService {
	return &OrderService{db: db, rates: rates, milestones: milestones, notifier: notifier, now: time.Now}
}

// Create runs intake: validates the client, area and items, prices the
// order, generates its DO number and seeds its milestones.
func (s *OrderService) Create(ctx context.Context, in OrderInput, source string) (*models.DeliveryOrder, error) {
	order := models.DeliveryOrder{Status: models.OrderPending}
	if err := s.applyInput(ctx, &order, in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doNumber, err := nextDONumber(tx, order.OrderDate)
		if err != nil {
			return err
		}
		order.DONumber = doNumber
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return s.milestones.Seed(tx, &order)
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(source).Inc()
	logrus.WithFields(logrus.Fields{
		"do_number":  order.DONumber,
		"po_number":  order.PONumber,
		"client_id":  order.ClientID,
		"total_rate": order.TotalRate,
	}).Info("Delivery order created")
	s.notifier.Notify(ctx, nil, NotifyOrder, "New delivery order",
		fmt.Sprintf("%s created for PO %s", order.DONumber, order.PONumber))
	return &order, nil
}

// applyInput validates in and fills order's header, items, totals and rates.
func (s *OrderService) applyInput(ctx context.Context, order *models.DeliveryOrder, in OrderInput) error {
	db := s.db.WithContext(ctx)
	if strings.TrimSpace(in.PONumber) == "" {
		return fmt.Errorf("%w: po_number is required", ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidInput)
	}

	var client models.Client
	if err := db.First(&client, in.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: client %d does not exist", ErrInvalidInput, in.ClientID)
		}
		return err
	}

	areaID := in.AreaID
	if areaID == 0 {
		areaID = client.AreaID
	}
	var area models.Area
	if err := db.First(&area, areaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: area %d does not exist", ErrInvalidInput, areaID)
		}
		return err
	}

	orderDate := s.now()
	if in.OrderDate != nil && !in.OrderDate.IsZero() {
		orderDate = *in.OrderDate
	}
	if in.DeliveryDate.IsZero() {
		return fmt.Errorf("%w: delivery_date is required", ErrInvalidInput)
	}
	if dayOf(in.DeliveryDate).Before(dayOf(orderDate)) {
		return fmt.Errorf("%w: delivery_date is before order_date", ErrInvalidInput)
	}

	items := make([]models.DeliveryOrderItem, 0, len(in.Items))
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidInput, i+1)
		}
		var product models.Product
		if err := db.First(&product, it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: item %d product %d does not exist", ErrInvalidInput, i+1, it.ProductID)
			}
			return err
		}
		price := product.Price
		if it.Price != nil {
			if *it.Price < 0 {
				return fmt.Errorf("%w: item %d price must not be negative", ErrInvalidInput, i+1)
			}
			price = *it.Price
		}
		items = append(items, models.DeliveryOrderItem{
			ProductID: product.ID,
			Quantity:  it.Quantity,
			Price:     price,
			Volume:    product.Volume,
		})
	}

	quote, err := s.rates.Quote(ctx, area.ID, in.AdditionalRateType)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoRateGroup) || errors.Is(err, ErrUnknownRateType) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return err
	}

	order.PONumber = strings.TrimSpace(in.PONumber)
	order.ClientID = client.ID
	order.AreaID = area.ID
	order.ProvinceID = area.ProvinceID
	order.OrderDate = orderDate
	order.DeliveryDate = in.DeliveryDate
	order.Notes = in.Notes
	order.Items = items
	order.Recalculate()
	applyQuote(order, quote)
	return nil
}

func applyQuote(order *models.DeliveryOrder, q Quote) {
	order.AdditionalRateType = q.AdditionalRateType
	order.BaseRate = q.BaseRate
	order.AdditionalRate = q.AdditionalRate
	order.TotalRate = q.TotalRate
}

// nextDONumber returns DO-YYYYMMDD-NNNN, numbering per order day.
func nextDONumber(tx *gorm.DB, day time.Time) (string, error) {
	prefix := fmt.Sprintf("DO-%s-", day.Format("20060102"))
	var count int64
	if err := tx.Unscoped().Model(&models.DeliveryOrder{}).Where("do_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Get loads an order with items, client and milestones.
func (s *OrderService) Get(ctx context.Context, id uint) (*models.DeliveryOrder, error) {
	var order models.DeliveryOrder
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Items").
		Preload("Items.Product").
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("sequence") }).
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &order, nil
}

// List returns one page of orders and the total matching count.
func (s *OrderService) List(ctx context.Context, f OrderFilter) ([]models.DeliveryOrder, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.DeliveryOrder{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.DeliveryDate != nil {
		start := dayOf(*f.DeliveryDate)
		q = q.Where("delivery_date >= ? AND delivery_date < ?", start, start.AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	var orders []models.DeliveryOrder
	err := q.Preload("Client").
		Order("delivery_date desc, id desc").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&orders).Error
	return orders, total, err
}

// Update replaces the header and items of a pending order.
func (s *OrderService) Update(ctx context.Context, id uint, in OrderInput) (*models.DeliveryOrder, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != models.OrderPending {
		return nil, fmt.Errorf("%w: only pending orders can be edited (status %s)", ErrInvalidTransition, existing.Status)
	}
	if in.OrderDate == nil {
		in.OrderDate = &existing.OrderDate
	}
	order := *existing
	if err := s.applyInput(ctx, &order, in); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("delivery_order_id = ?", order.ID).Delete(&models.DeliveryOrderItem{}).Error; err != nil {
			return err
		}
		for i := range order.Items {
			order.Items[i].DeliveryOrderID = order.ID
		}
		if err := tx.Create(&order.Items).Error; err != nil {
			return err
		}
		if !order.OrderDate.Equal(existing.OrderDate) {
			if err := s.milestones.Rebase(tx, order.ID, order.OrderDate); err != nil {
				return err
			}
		}
		return tx.Model(&models.DeliveryOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"po_number":            order.PONumber,
			"client_id":            order.ClientID,
			"area_id":              order.AreaID,
			"province_id":          order.ProvinceID,
			"order_date":           order.OrderDate,
			"delivery_date":        order.DeliveryDate,
			"notes":                order.Notes,
			"additional_rate_type": order.AdditionalRateType,
			"base_rate":            order.BaseRate,
			"additional_rate":      order.AdditionalRate,
			"total_rate":           order.TotalRate,
			"total_quantity":       order.TotalQuantity,
			"total_volume":         order.TotalVolume,
			"total_amount":         order.TotalAmount,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Confirm moves a pending order to confirmed and reprices it.
func (s *OrderService) Confirm(ctx context.Context, id uint) (*models.DeliveryOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPending {
		return nil, fmt.Errorf("%w: cannot confirm order in status %s", ErrInvalidTransition, order.Status)
	}
	quote, err := s.rates.Quote(ctx, order.AreaID, order.AdditionalRateType)
	if err != nil {
		return nil, err
	}
	applyQuote(order, quote)
	order.Status = models.OrderConfirmed
	err = s.db.WithContext(ctx).Model(&models.DeliveryOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"status":          order.Status,
		"base_rate":       order.BaseRate,
		"additional_rate": order.AdditionalRate,
		"total_rate":      order.TotalRate,
	}).Error
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"do_number": order.DONumber, "total_rate": order.TotalRate}).Info("Delivery order confirmed")
	return order, nil
}

// Cancel cancels an order that has not settled and detaches it from its batch.
func (s *OrderService) Cancel(ctx context.Context, id uint) (*models.DeliveryOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.IsFinal() {
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidTransition, order.Status)
	}
	batchID := order.BatchID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DeliveryOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"status":        models.OrderCancelled,
			"batch_id":      nil,
			"stop_sequence": 0,
		}).Error; err != nil {
			return err
		}
		if batchID != nil {
			return refreshBatchTotals(tx, *batchID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderCancelled
	order.BatchID = nil
	order.StopSequence = 0
	return order, nil
}
