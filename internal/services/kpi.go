package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"delivery_backoffice/internal/models"
)

const (
	// KPIThresholdPercent is the highest acceptable delivery cost as a
	// share of sales.
	KPIThresholdPercent = 2.0
	kpiTargetRatio      = KPIThresholdPercent / 100
	periodLayout        = "2006-01"
)

// KPIResult is delivery cost measured against sales.
type KPIResult struct {
	TotalRate   float64 `json:"total_rate"`
	ActualSales float64 `json:"actual_sales"`
	Percentage  float64 `json:"percentage"`
	TargetSales float64 `json:"target_sales"`
	Opportunity float64 `json:"opportunity"`
	Exceeded    bool    `json:"exceeded"`
}

// ComputeKPI derives the KPI percentage, the sales needed to bring the rate
// down to the threshold, and the gap to those sales. With no sales the
// percentage is 0 and any rate at all exceeds the threshold.
func ComputeKPI(totalRate, actualSales float64) KPIResult {
	r := KPIResult{
		TotalRate:   totalRate,
		ActualSales: actualSales,
		TargetSales: totalRate / kpiTargetRatio,
	}
	r.Opportunity = r.TargetSales - actualSales
	if actualSales > 0 {
		r.Percentage = totalRate * 100 / actualSales
		r.Exceeded = r.Percentage > KPIThresholdPercent
	} else {
		r.Exceeded = totalRate > 0
	}
	return r
}

// ParsePeriod parses YYYY-MM into the half-open month [start, end).
func ParsePeriod(period string) (time.Time, time.Time, error) {
	start, err := time.Parse(periodLayout, period)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: period must be YYYY-MM", ErrInvalidInput)
	}
	return start, start.AddDate(0, 1, 0), nil
}

type KPIRow struct {
	ClientID   uint   `json:"client_id"`
	ClientCode string `json:"client_code"`
	ClientName string `json:"client_name"`
	KPIResult
}

type KPIReport struct {
	Period    string    `json:"period"`
	Threshold float64   `json:"threshold"`
	Rows      []KPIRow  `json:"rows"`
	Total     KPIResult `json:"total"`
}

type KPIService struct {
	db *gorm.DB
}

func NewKPIService(db *gorm.DB) *KPIService {
	return &KPIService{db: db}
}

// RecordSales upserts a client's actual sales for a period.
func (s *KPIService) RecordSales(ctx context.Context, clientID uint, period string, amount float64) (models.KPISale, error) {
	var sale models.KPISale
	if _, _, err := ParsePeriod(period); err != nil {
		return sale, err
	}
	if amount < 0 {
		return sale, fmt.Errorf("%w: actual_sales must not be negative", ErrInvalidInput)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, clientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: client %d does not exist", ErrInvalidInput, clientID)
			}
			return err
		}
		if err := tx.Where(models.KPISale{ClientID: clientID, Period: period}).FirstOrInit(&sale).Error; err != nil {
			return err
		}
		sale.ActualSales = amount
		return tx.Save(&sale).Error
	})
	return sale, err
}

// Report computes the KPI of every client with rates or sales in period.
func (s *KPIService) Report(ctx context.Context, period string) (KPIReport, error) {
	start, end, err := ParsePeriod(period)
	if err != nil {
		return KPIReport{}, err
	}
	db := s.db.WithContext(ctx)

	var rates []struct {
		ClientID  uint
		TotalRate float64
	}
	if err := db.Model(&models.DeliveryOrder{}).
		Select("client_id, SUM(total_rate) AS total_rate").
		Where("status <> ?", models.OrderCancelled).
		Where("delivery_date >= ? AND delivery_date < ?", start, end).
		Group("client_id").
		Scan(&rates).Error; err != nil {
		return KPIReport{}, err
	}

	var sales []models.KPISale
	if err := db.Where("period = ?", period).Find(&sales).Error; err != nil {
		return KPIReport{}, err
	}

	rateBy := map[uint]float64{}
	salesBy := map[uint]float64{}
	var ids []uint
	seen := map[uint]bool{}
	add := func(id uint) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range rates {
		rateBy[r.ClientID] = r.TotalRate
		add(r.ClientID)
	}
	for _, sl := range sales {
		salesBy[sl.ClientID] = sl.ActualSales
		add(sl.ClientID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	clients := map[uint]models.Client{}
	if len(ids) > 0 {
		var list []models.Client
		if err := db.Where("id IN ?", ids).Find(&list).Error; err != nil {
			return KPIReport{}, err
		}
		for _, c := range list {
			clients[c.ID] = c
		}
	}

	report := KPIReport{Period: period, Threshold: KPIThresholdPercent, Rows: []KPIRow{}}
	var sumRate, sumSales float64
	for _, id := range ids {
		c := clients[id]
		report.Rows = append(report.Rows, KPIRow{
			ClientID:   id,
			ClientCode: c.Code,
			ClientName: c.Name,
			KPIResult:  ComputeKPI(rateBy[id], salesBy[id]),
		})
		sumRate += rateBy[id]
		sumSales += salesBy[id]
	}
	report.Total = ComputeKPI(sumRate, sumSales)
	return report, nil
}
