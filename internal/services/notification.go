package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"delivery_backoffice/internal/models"
)

const (
	NotifyInfo  = "info"
	NotifyOrder = "order"
	NotifyBatch = "batch"
	NotifyDelay = "delay"
)

// Publisher pushes a stored notification to connected clients.
type Publisher interface {
	Publish(n models.Notification)
}

type NotificationService struct {
	db  *gorm.DB
	pub Publisher
	now func() time.Time
}

// NewNotificationService returns a service; pub may be nil.
func NewNotificationService(db *gorm.DB, pub Publisher) *NotificationService {
	return &NotificationService{db: db, pub: pub, now: time.Now}
}

// Create stores n and publishes it.
func (s *NotificationService) Create(ctx context.Context, n *models.Notification) error {
	if n.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if n.Type == "" {
		n.Type = NotifyInfo
	}
	if n.UserID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", *n.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("user %d: %w", *n.UserID, ErrNotFound)
		}
	}
	n.IsRead = false
	n.ReadAt = nil
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return err
	}
	if s.pub != nil {
		s.pub.Publish(*n)
	}
	return nil
}

// Notify is the fire-and-forget form used by other services. Failures are
// logged, never returned.
func (s *NotificationService) Notify(ctx context.Context, userID *uint, typ, title, message string) {
	if s == nil {
		return
	}
	n := models.Notification{UserID: userID, Type: typ, Title: title, Message: message}
	if err := s.Create(ctx, &n); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"type": typ, "title": title}).Warn("Failed to create notification")
	}
}

// forUser scopes a query to the user's own and global notifications.
func forUser(db *gorm.DB, userID uint) *gorm.DB {
	return db.Where("(user_id = ? OR user_id IS NULL)", userID)
}

// ListForUser returns the newest notifications visible to userID.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := forUser(s.db.WithContext(ctx), userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var list []models.Notification
	err := q.Order("created_at desc, id desc").Limit(limit).Find(&list).Error
	return list, err
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := forUser(s.db.WithContext(ctx).Model(&models.Notification{}), userID).
		Where("is_read = ?", false).
		Count(&count).Error
	return count, err
}

func (s *NotificationService) MarkRead(ctx context.Context, id uint) (models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return n, fmt.Errorf("notification %d: %w", id, ErrNotFound)
		}
		return n, err
	}
	if n.IsRead {
		return n, nil
	}
	now := s.now()
	if err := s.db.WithContext(ctx).Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return n, err
	}
	n.IsRead = true
	n.ReadAt = &now
	return n, nil
}

// MarkAllRead marks every unread notification visible to userID as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := forUser(s.db.WithContext(ctx).Model(&models.Notification{}), userID).
		Where("is_read = ?", false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now()})
	return res.RowsAffected, res.Error
}
