package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrOverrideNotFound = errors.New("no availability set for this month")
)

type Store interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	// GetOverride returns ErrOverrideNotFound when the month uses the profile default.
	GetOverride(ctx context.Context, userID uint, year, month int) (*models.MonthlyAvailability, error)
	UpsertOverride(ctx context.Context, a *models.MonthlyAvailability) error
	DeleteOverride(ctx context.Context, userID uint, year, month int) error
	ActiveCommitments(ctx context.Context, userID uint) ([]models.Commitment, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading user %d: %w", id, err)
	}
	return &u, nil
}

func (s *GormStore) GetOverride(ctx context.Context, userID uint, year, month int) (*models.MonthlyAvailability, error) {
	var a models.MonthlyAvailability
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND month = ?", userID, year, month).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOverrideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading availability: %w", err)
	}
	return &a, nil
}

func (s *GormStore) UpsertOverride(ctx context.Context, a *models.MonthlyAvailability) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"hours_available", "updated_at", "deleted_at"}),
	}).Create(a).Error
	if err != nil {
		return fmt.Errorf("error saving availability: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteOverride(ctx context.Context, userID uint, year, month int) error {
	result := s.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND year = ? AND month = ?", userID, year, month).
		Delete(&models.MonthlyAvailability{})
	if result.Error != nil {
		return fmt.Errorf("error deleting availability: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOverrideNotFound
	}
	return nil
}

func (s *GormStore) ActiveCommitments(ctx context.Context, userID uint) ([]models.Commitment, error) {
	var commitments []models.Commitment
	err := s.db.WithContext(ctx).
		Where("volunteer_id = ? AND status IN ?", userID, models.ActiveCommitmentStatuses).
		Find(&commitments).Error
	if err != nil {
		return nil, fmt.Errorf("error loading commitments: %w", err)
	}
	return commitments, nil
}
