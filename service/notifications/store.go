package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrDeviceNotFound       = errors.New("device not found")
	ErrCommitmentNotFound   = errors.New("commitment not found")
)

// Filter narrows ListNotifications. Zero values are ignored.
type Filter struct {
	Type   string `json:"type"`
	IsRead *bool  `json:"is_read"`
	Sort   string `json:"-"`
	Limit  int    `json:"-"`
}

// Parties names who a commitment connects: the volunteer and the owner of
// the business they committed to.
type Parties struct {
	VolunteerID uint
	BusinessID  uint
	OwnerID     uint
}

var notificationSortFields = map[string]bool{
	"created_at": true,
	"type":       true,
	"is_read":    true,
}

// Store persists notifications and push devices. Every lookup is scoped to
// the owning user so foreign ids read as not found.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uint, f Filter) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	DeleteNotification(ctx context.Context, userID, id uint) error

	UpsertDevice(ctx context.Context, d *models.Device) error
	DeleteDevice(ctx context.Context, userID, id uint) error
	UserDevices(ctx context.Context, userID uint) ([]models.Device, error)
	DeleteDevicesByToken(ctx context.Context, tokens []string) error

	CommitmentParties(ctx context.Context, commitmentID uint) (*Parties, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

func (s *GormStore) ListNotifications(ctx context.Context, userID uint, f Filter) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.IsRead != nil {
		query = query.Where("is_read = ?", *f.IsRead)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var notifications []models.Notification
	err := query.Order(utils.OrderClause(f.Sort, notificationSortFields, "created_at DESC")).Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}
	return notifications, nil
}

func (s *GormStore) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting notifications: %w", err)
	}
	return count, nil
}

func (s *GormStore) MarkRead(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return fmt.Errorf("error marking notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flips every unread notification of the user in one statement.
func (s *GormStore) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("error marking notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) DeleteNotification(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("error deleting notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// UpsertDevice registers a token for a user, refreshing the device details if
// the pair already exists. Devices are hard deleted so the unique pair never
// collides with a soft-deleted row.
func (s *GormStore) UpsertDevice(ctx context.Context, d *models.Device) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_type", "device_name", "updated_at"}),
	}).Create(d).Error
	if err != nil {
		return fmt.Errorf("error registering device: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteDevice(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Unscoped().Where("id = ? AND user_id = ?", id, userID).Delete(&models.Device{})
	if result.Error != nil {
		return fmt.Errorf("error deleting device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (s *GormStore) UserDevices(ctx context.Context, userID uint) ([]models.Device, error) {
	var devices []models.Device
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("error loading devices: %w", err)
	}
	return devices, nil
}

func (s *GormStore) DeleteDevicesByToken(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Unscoped().Where("token IN ?", tokens).Delete(&models.Device{}).Error; err != nil {
		return fmt.Errorf("error removing stale devices: %w", err)
	}
	return nil
}

func (s *GormStore) CommitmentParties(ctx context.Context, commitmentID uint) (*Parties, error) {
	var parties Parties
	result := s.db.WithContext(ctx).Model(&models.Commitment{}).
		Select("commitments.volunteer_id, commitments.business_id, businesses.owner_id").
		Joins("JOIN businesses ON businesses.id = commitments.business_id").
		Where("commitments.id = ?", commitmentID).
		Scan(&parties)
	if result.Error != nil {
		return nil, fmt.Errorf("error loading commitment %d: %w", commitmentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrCommitmentNotFound
	}
	return &parties, nil
}
