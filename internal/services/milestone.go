package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delivery_backoffice/internal/metrics"
	"delivery_backoffice/internal/models"
)

// PlanSchedule lays the templates end to end starting at start. Every stage
// is planned at its standard duration, so the whole chain has zero slack.
func PlanSchedule(templates []models.DeliveryMilestoneTemplate, start time.Time) []models.DeliveryOrderMilestone {
	out := make([]models.DeliveryOrderMilestone, 0, len(templates))
	cur := start
	for _, t := range templates {
		end := cur.Add(hoursToDuration(t.StandardDuration))
		m := models.DeliveryOrderMilestone{
			TemplateID:       t.ID,
			Name:             t.Name,
			Sequence:         t.Sequence,
			Status:           models.MilestonePending,
			StandardDuration: t.StandardDuration,
		}
		ApplyPlan(&m, cur, end)
		out = append(out, m)
		cur = end
	}
	return out
}

// ApplyPlan sets planned dates and derives planned duration, slack and the
// critical-path flag from them.
func ApplyPlan(m *models.DeliveryOrderMilestone, start, end time.Time) {
	m.PlannedStart = start
	m.PlannedEnd = end
	m.PlannedDuration = end.Sub(start).Hours()
	m.Slack = m.PlannedDuration - m.StandardDuration
	m.IsCriticalPath = m.Slack <= 0
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// CriticalPathSummary describes how an order's fulfilment is tracking.
type CriticalPathSummary struct {
	OrderID           uint                            `json:"order_id"`
	Critical          []models.DeliveryOrderMilestone `json:"critical"`
	Active            *models.DeliveryOrderMilestone  `json:"active,omitempty"`
	PlannedFinish     time.Time                       `json:"planned_finish"`
	TotalPlannedHours float64                         `json:"total_planned_hours"`
	TotalActualHours  float64                         `json:"total_actual_hours"`
	TotalSlackHours   float64                         `json:"total_slack_hours"`
	Completed         int                             `json:"completed"`
	Total             int                             `json:"total"`
	RunningLate       bool                            `json:"running_late"`
}

// Summarize builds the critical-path view of ms (ordered by sequence) at now.
func Summarize(orderID uint, ms []models.DeliveryOrderMilestone, now time.Time) CriticalPathSummary {
	sum := CriticalPathSummary{OrderID: orderID, Total: len(ms), Critical: []models.DeliveryOrderMilestone{}}
	for i := range ms {
		m := ms[i]
		sum.TotalPlannedHours += m.PlannedDuration
		sum.TotalActualHours += m.ActualDuration
		sum.TotalSlackHours += m.Slack
		if m.IsCriticalPath {
			sum.Critical = append(sum.Critical, m)
		}
		if m.PlannedEnd.After(sum.PlannedFinish) {
			sum.PlannedFinish = m.PlannedEnd
		}
		switch m.Status {
		case models.MilestoneCompleted:
			sum.Completed++
		case models.MilestoneActive:
			sum.Active = &m
			if now.After(m.PlannedEnd) {
				sum.RunningLate = true
			}
		}
	}
	return sum
}

type MilestoneService struct {
	db       *gorm.DB
	notifier *NotificationService
	now      func() time.Time
}

func NewMilestoneService(db *gorm.DB, notifier *NotificationService) *MilestoneService {
	return &MilestoneService{db: db, notifier: notifier, now: time.Now}
}

// Templates lists the shared stage sequence.
func (s *MilestoneService) Templates(ctx context.Context) ([]models.DeliveryMilestoneTemplate, error) {
	var list []models.DeliveryMilestoneTemplate
	err := s.db.WithContext(ctx).Order("sequence").Find(&list).Error
	return list, err
}

// Seed creates the milestone chain for a freshly created order inside tx
// and activates the first stage.
func (s *MilestoneService) Seed(tx *gorm.DB, order *models.DeliveryOrder) error {
	var templates []models.DeliveryMilestoneTemplate
	if err := tx.Order("sequence").Find(&templates).Error; err != nil {
		return err
	}
	if len(templates) == 0 {
		return nil
	}
	ms := PlanSchedule(templates, order.OrderDate)
	now := s.now()
	ms[0].Status = models.MilestoneActive
	ms[0].ActualStart = &now
	for i := range ms {
		ms[i].DeliveryOrderID = order.ID
	}
	if err := tx.Create(&ms).Error; err != nil {
		return fmt.Errorf("seed milestones: %w", err)
	}
	order.Milestones = ms
	return nil
}

// Rebase shifts an order's planned chain inside tx so the first stage starts
// at start. Planned durations, and so slack from earlier replans, are kept.
func (s *MilestoneService) Rebase(tx *gorm.DB, orderID uint, start time.Time) error {
	var ms []models.DeliveryOrderMilestone
	if err := tx.Where("delivery_order_id = ?", orderID).Order("sequence").Find(&ms).Error; err != nil {
		return err
	}
	if len(ms) == 0 {
		return nil
	}
	shift := start.Sub(ms[0].PlannedStart)
	if shift == 0 {
		return nil
	}
	for _, m := range ms {
		if err := tx.Model(&models.DeliveryOrderMilestone{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
			"planned_start": m.PlannedStart.Add(shift),
			"planned_end":   m.PlannedEnd.Add(shift),
		}).Error; err != nil {
			return fmt.Errorf("rebase milestone %d: %w", m.ID, err)
		}
	}
	return nil
}

// List returns the order's milestones in sequence.
func (s *MilestoneService) List(ctx context.Context, orderID uint) ([]models.DeliveryOrderMilestone, error) {
	if _, err := s.loadOrder(s.db.WithContext(ctx), orderID); err != nil {
		return nil, err
	}
	var ms []models.DeliveryOrderMilestone
	err := s.db.WithContext(ctx).Where("delivery_order_id = ?", orderID).Order("sequence").Find(&ms).Error
	return ms, err
}

func (s *MilestoneService) loadOrder(db *gorm.DB, orderID uint) (models.DeliveryOrder, error) {
	var order models.DeliveryOrder
	if err := db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return order, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return order, err
	}
	return order, nil
}

// AdvanceResult reports what one Advance call changed. Settled is true when
// the call set the order's final status.
type AdvanceResult struct {
	Completed   models.DeliveryOrderMilestone  `json:"completed"`
	Next        *models.DeliveryOrderMilestone `json:"next,omitempty"`
	OrderStatus string                         `json:"order_status"`
	Settled     bool                           `json:"settled"`
}

// Advance completes the active milestone at `at` (now when nil) and
// activates the next one. Completing the last milestone settles the order
// as on_time or delayed against its planned end, unless a batch completion
// already settled it.
func (s *MilestoneService) Advance(ctx context.Context, orderID uint, at *time.Time) (AdvanceResult, error) {
	var res AdvanceResult
	end := s.now()
	if at != nil {
		end = *at
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderCancelled {
			return fmt.Errorf("%w: order %s is cancelled", ErrInvalidTransition, order.DONumber)
		}

		var ms []models.DeliveryOrderMilestone
		if err := tx.Where("delivery_order_id = ?", orderID).Order("sequence").Find(&ms).Error; err != nil {
			return err
		}
		idx := -1
		for i := range ms {
			if ms[i].Status == models.MilestoneActive {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Nothing active: start the first pending milestone.
			for i := range ms {
				if ms[i].Status == models.MilestonePending {
					idx = i
					start := end
					ms[i].ActualStart = &start
					break
				}
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: all milestones of order %s are completed", ErrInvalidTransition, order.DONumber)
		}

		cur := &ms[idx]
		if cur.ActualStart == nil {
			start := end
			cur.ActualStart = &start
		}
		if end.Before(*cur.ActualStart) {
			return fmt.Errorf("%w: completion time is before the milestone started", ErrInvalidInput)
		}
		actualEnd := end
		cur.Status = models.MilestoneCompleted
		cur.ActualEnd = &actualEnd
		cur.ActualDuration = actualEnd.Sub(*cur.ActualStart).Hours()
		if err := tx.Save(cur).Error; err != nil {
			return err
		}
		res.Completed = *cur

		if idx+1 < len(ms) {
			next := &ms[idx+1]
			nextStart := actualEnd
			next.Status = models.MilestoneActive
			next.ActualStart = &nextStart
			if err := tx.Save(next).Error; err != nil {
				return err
			}
			res.Next = next
			res.OrderStatus = order.Status
			metrics.MilestonesAdvanced.WithLabelValues("progress").Inc()
			return nil
		}

		// A batch completion that already settled the order wins.
		if order.IsFinal() {
			res.OrderStatus = order.Status
			metrics.MilestonesAdvanced.WithLabelValues("progress").Inc()
			return nil
		}
		status := models.OrderOnTime
		if actualEnd.After(cur.PlannedEnd) {
			status = models.OrderDelayed
		}
		if err := tx.Model(&order).Update("status", status).Error; err != nil {
			return err
		}
		res.OrderStatus = status
		res.Settled = true
		metrics.MilestonesAdvanced.WithLabelValues(status).Inc()
		return nil
	})
	if err != nil {
		return res, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":  orderID,
		"milestone": res.Completed.Name,
		"duration":  res.Completed.ActualDuration,
	}).Info("Milestone completed")
	if res.Settled && res.OrderStatus == models.OrderDelayed {
		s.notifier.Notify(ctx, nil, NotifyDelay, "Order delayed",
			fmt.Sprintf("Order %d finished %q after its planned end", orderID, res.Completed.Name))
	}
	return res, nil
}

// Replan moves one milestone's planned window and recomputes its slack.
func (s *MilestoneService) Replan(ctx context.Context, orderID, milestoneID uint, start, end time.Time) (models.DeliveryOrderMilestone, error) {
	var m models.DeliveryOrderMilestone
	if end.Before(start) {
		return m, fmt.Errorf("%w: planned end is before planned start", ErrInvalidInput)
	}
	if err := s.db.WithContext(ctx).Where("id = ? AND delivery_order_id = ?", milestoneID, orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return m, fmt.Errorf("milestone %d of order %d: %w", milestoneID, orderID, ErrNotFound)
		}
		return m, err
	}
	if m.Status == models.MilestoneCompleted {
		return m, fmt.Errorf("%w: milestone %q is already completed", ErrInvalidTransition, m.Name)
	}
	ApplyPlan(&m, start, end)
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return m, err
	}
	return m, nil
}

// CriticalPath summarizes the order's milestones.
func (s *MilestoneService) CriticalPath(ctx context.Context, orderID uint) (CriticalPathSummary, error) {
	ms, err := s.List(ctx, orderID)
	if err != nil {
		return CriticalPathSummary{}, err
	}
	return Summarize(orderID, ms, s.now()), nil
}
