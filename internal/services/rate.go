package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delivery_backoffice/internal/metrics"
	"delivery_backoffice/internal/models"
)

// AreaRate is the cached part of a quote: which group an area belongs to
// and that group's base rate.
type AreaRate struct {
	AreaGroupID   uint    `json:"area_group_id"`
	AreaGroupName string  `json:"area_group_name"`
	BaseRate      float64 `json:"base_rate"`
}

// Quote is the rate of one delivery to one area.
type Quote struct {
	AreaID             uint    `json:"area_id"`
	AreaGroupID        uint    `json:"area_group_id"`
	AreaGroupName      string  `json:"area_group_name"`
	AdditionalRateType string  `json:"additional_rate_type"`
	BaseRate           float64 `json:"base_rate"`
	AdditionalRate     float64 `json:"additional_rate"`
	TotalRate          float64 `json:"total_rate"`
}

// RateCache stores rate lookups between requests. Implementations must
// tolerate their backend being unavailable.
type RateCache interface {
	AreaRate(ctx context.Context, areaID uint) (AreaRate, bool)
	SetAreaRate(ctx context.Context, areaID uint, r AreaRate)
	Surcharges(ctx context.Context) (map[string]float64, bool)
	SetSurcharges(ctx context.Context, m map[string]float64)
	Invalidate(ctx context.Context)
}

type nopRateCache struct{}

func (nopRateCache) AreaRate(context.Context, uint) (AreaRate, bool) { return AreaRate{}, false }
func (nopRateCache) SetAreaRate(context.Context, uint, AreaRate) {}
func (nopRateCache) Surcharges(context.Context) (map[string]float64, bool) {
	return nil, false
}
func (nopRateCache) SetSurcharges(context.Context, map[string]float64) {}
func (nopRateCache) Invalidate(context.Context) {}

type RateService struct {
	db    *gorm.DB
	cache RateCache
}

// NewRateService returns a rate service; cache may be nil.
func NewRateService(db *gorm.DB, cache RateCache) *RateService {
	if cache == nil {
		cache = nopRateCache{}
	}
	return &RateService{db: db, cache: cache}
}

// Quote computes base rate + surcharge for a delivery to areaID.
func (s *RateService) Quote(ctx context.Context, areaID uint, additionalType string) (Quote, error) {
	if additionalType != "" && !models.IsAdditionalRateType(additionalType) {
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownRateType, additionalType)
	}

	ar, err := s.areaRate(ctx, areaID)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		AreaID:             areaID,
		AreaGroupID:        ar.AreaGroupID,
		AreaGroupName:      ar.AreaGroupName,
		AdditionalRateType: additionalType,
		BaseRate:           ar.BaseRate,
	}
	if additionalType != "" {
		surcharges, err := s.surcharges(ctx)
		if err != nil {
			return Quote{}, err
		}
		amount, ok := surcharges[additionalType]
		if !ok {
			logrus.WithField("additional_rate_type", additionalType).Warn("Rate setting missing, surcharge treated as 0")
		}
		q.AdditionalRate = amount
	}
	q.TotalRate = q.BaseRate + q.AdditionalRate
	return q, nil
}

func (s *RateService) areaRate(ctx context.Context, areaID uint) (AreaRate, error) {
	if ar, ok := s.cache.AreaRate(ctx, areaID); ok {
		metrics.RateLookups.WithLabelValues("hit").Inc()
		return ar, nil
	}
	metrics.RateLookups.WithLabelValues("miss").Inc()

	var area models.Area
	if err := s.db.WithContext(ctx).Preload("AreaGroup").First(&area, areaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AreaRate{}, fmt.Errorf("area %d: %w", areaID, ErrNotFound)
		}
		return AreaRate{}, err
	}
	if area.AreaGroup == nil {
		return AreaRate{}, fmt.Errorf("area %q: %w", area.Name, ErrNoRateGroup)
	}
	ar := AreaRate{
		AreaGroupID:   area.AreaGroup.ID,
		AreaGroupName: area.AreaGroup.Name,
		BaseRate:      area.AreaGroup.BaseRate,
	}
	s.cache.SetAreaRate(ctx, areaID, ar)
	return ar, nil
}

func (s *RateService) surcharges(ctx context.Context) (map[string]float64, error) {
	if m, ok := s.cache.Surcharges(ctx); ok {
		return m, nil
	}
	var settings []models.RateSetting
	if err := s.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, err
	}
	m := make(map[string]float64, len(settings))
	for _, st := range settings {
		m[st.Key] = st.Amount
	}
	s.cache.SetSurcharges(ctx, m)
	return m, nil
}

// Settings lists the surcharge table.
func (s *RateService) Settings(ctx context.Context) ([]models.RateSetting, error) {
	var settings []models.RateSetting
	err := s.db.WithContext(ctx).Order("id").Find(&settings).Error
	return settings, err
}

// UpdateSetting sets the surcharge amount for key, creating the row if needed.
func (s *RateService) UpdateSetting(ctx context.Context, key string, amount float64, label *string) (models.RateSetting, error) {
	if !models.IsAdditionalRateType(key) {
		return models.RateSetting{}, fmt.Errorf("%w: %q", ErrUnknownRateType, key)
	}
	if amount < 0 {
		return models.RateSetting{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}

	var setting models.RateSetting
	if err := s.db.WithContext(ctx).Where(models.RateSetting{Key: key}).FirstOrInit(&setting).Error; err != nil {
		return setting, err
	}
	setting.Amount = amount
	if label != nil {
		setting.Label = *label
	}
	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return setting, err
	}
	s.cache.Invalidate(ctx)
	return setting, nil
}

// UpdateBaseRate changes an area group's base rate.
func (s *RateService) UpdateBaseRate(ctx context.Context, groupID uint, rate float64) (models.AreaGroup, error) {
	var group models.AreaGroup
	if rate < 0 {
		return group, fmt.Errorf("%w: base rate must not be negative", ErrInvalidInput)
	}
	if err := s.db.WithContext(ctx).First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return group, fmt.Errorf("area group %d: %w", groupID, ErrNotFound)
		}
		return group, err
	}
	if err := s.db.WithContext(ctx).Model(&group).Update("base_rate", rate).Error; err != nil {
		return group, err
	}
	group.BaseRate = rate
	s.cache.Invalidate(ctx)
	return group, nil
}
