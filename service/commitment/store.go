package commitment

import (
	"context"
	"errors"
	"fmt"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"gorm.io/gorm"
)

// ListFilter narrows ListCommitments. Zero values are ignored.
type ListFilter struct {
	VolunteerID uint
	BusinessID  uint
	Statuses    []string
	Sort        string
	Limit       int
}

// Store is the persistence the commitment workflow needs. Write methods
// with a precondition report a lost race with a sentinel error instead of
// silently doing nothing.
type Store interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetBusiness(ctx context.Context, id uint) (*models.Business, error)
	GetOpportunity(ctx context.Context, id uint) (*models.Opportunity, error)
	GetCommitment(ctx context.Context, id uint) (*models.Commitment, error)
	// MonthlyOverride returns the per-month hours budget if the user set one.
	MonthlyOverride(ctx context.Context, userID uint, year, month int) (int, bool, error)
	ActiveCommitments(ctx context.Context, volunteerID uint) ([]models.Commitment, error)
	ListCommitments(ctx context.Context, f ListFilter) ([]models.Commitment, error)

	CreateCommitment(ctx context.Context, c *models.Commitment) error
	// UpdatePendingDetails rewrites hours, start date and notes of a pending commitment.
	UpdatePendingDetails(ctx context.Context, c *models.Commitment) error
	// UpdateStatus moves a commitment from one status to another, failing with
	// ErrStatusConflict if it is no longer in the from status.
	UpdateStatus(ctx context.Context, id uint, from, to string) error
	// DeleteCommitment removes a commitment still in the given status.
	DeleteCommitment(ctx context.Context, id uint, status string) error
	// ReserveSlot takes one slot, failing with ErrOpportunityFull when none is free.
	ReserveSlot(ctx context.Context, opportunityID uint) error
	// ReleaseSlot gives back one slot, never going below zero.
	ReleaseSlot(ctx context.Context, opportunityID uint) error
	CreditHours(ctx context.Context, userID uint, hours int) error

	// Transaction runs fn against a Store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(Store) error) error
}

var commitmentSortFields = map[string]bool{
	"created_at":      true,
	"start_date":      true,
	"hours_committed": true,
	"status":          true,
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) first(ctx context.Context, dest interface{}, id uint, notFound error) error {
	err := s.db.WithContext(ctx).First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("error loading record %d: %w", id, err)
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.first(ctx, &user, id, ErrVolunteerNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) GetBusiness(ctx context.Context, id uint) (*models.Business, error) {
	var business models.Business
	if err := s.first(ctx, &business, id, ErrBusinessNotFound); err != nil {
		return nil, err
	}
	return &business, nil
}

func (s *GormStore) GetOpportunity(ctx context.Context, id uint) (*models.Opportunity, error) {
	var opportunity models.Opportunity
	if err := s.first(ctx, &opportunity, id, ErrOpportunityNotFound); err != nil {
		return nil, err
	}
	return &opportunity, nil
}

func (s *GormStore) GetCommitment(ctx context.Context, id uint) (*models.Commitment, error) {
	var commitment models.Commitment
	if err := s.first(ctx, &commitment, id, ErrCommitmentNotFound); err != nil {
		return nil, err
	}
	return &commitment, nil
}

func (s *GormStore) MonthlyOverride(ctx context.Context, userID uint, year, month int) (int, bool, error) {
	var availability models.MonthlyAvailability
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND month = ?", userID, year, month).
		First(&availability).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("error loading monthly availability: %w", err)
	}
	return availability.HoursAvailable, true, nil
}

func (s *GormStore) ActiveCommitments(ctx context.Context, volunteerID uint) ([]models.Commitment, error) {
	var commitments []models.Commitment
	err := s.db.WithContext(ctx).
		Where("volunteer_id = ? AND status IN ?", volunteerID, models.ActiveCommitmentStatuses).
		Find(&commitments).Error
	if err != nil {
		return nil, fmt.Errorf("error loading active commitments: %w", err)
	}
	return commitments, nil
}

func (s *GormStore) ListCommitments(ctx context.Context, f ListFilter) ([]models.Commitment, error) {
	query := s.db.WithContext(ctx).Model(&models.Commitment{})
	if f.VolunteerID != 0 {
		query = query.Where("volunteer_id = ?", f.VolunteerID)
	}
	if f.BusinessID != 0 {
		query = query.Where("business_id = ?", f.BusinessID)
	}
	if len(f.Statuses) > 0 {
		query = query.Where("status IN ?", f.Statuses)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var commitments []models.Commitment
	if err := query.Order(utils.OrderClause(f.Sort, commitmentSortFields, "created_at DESC")).Find(&commitments).Error; err != nil {
		return nil, fmt.Errorf("error listing commitments: %w", err)
	}
	return commitments, nil
}

func (s *GormStore) CreateCommitment(ctx context.Context, c *models.Commitment) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("error creating commitment: %w", err)
	}
	return nil
}

func (s *GormStore) UpdatePendingDetails(ctx context.Context, c *models.Commitment) error {
	result := s.db.WithContext(ctx).Model(&models.Commitment{}).
		Where("id = ? AND status = ?", c.ID, models.CommitmentPending).
		Updates(map[string]interface{}{
			"hours_committed": c.HoursCommitted,
			"start_date":      c.StartDate,
			"notes":           c.Notes,
		})
	if result.Error != nil {
		return fmt.Errorf("error updating commitment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, id uint, from, to string) error {
	result := s.db.WithContext(ctx).Model(&models.Commitment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("error updating commitment status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *GormStore) DeleteCommitment(ctx context.Context, id uint, status string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, status).
		Delete(&models.Commitment{})
	if result.Error != nil {
		return fmt.Errorf("error deleting commitment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *GormStore) ReserveSlot(ctx context.Context, opportunityID uint) error {
	result := s.db.WithContext(ctx).Model(&models.Opportunity{}).
		Where("id = ? AND (slots_needed = 0 OR slots_filled < slots_needed)", opportunityID).
		Update("slots_filled", gorm.Expr("slots_filled + 1"))
	if result.Error != nil {
		return fmt.Errorf("error reserving slot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOpportunityFull
	}
	return nil
}

func (s *GormStore) ReleaseSlot(ctx context.Context, opportunityID uint) error {
	err := s.db.WithContext(ctx).Model(&models.Opportunity{}).
		Where("id = ? AND slots_filled > 0", opportunityID).
		Update("slots_filled", gorm.Expr("slots_filled - 1")).Error
	if err != nil {
		return fmt.Errorf("error releasing slot: %w", err)
	}
	return nil
}

func (s *GormStore) CreditHours(ctx context.Context, userID uint, hours int) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("total_hours_volunteered", gorm.Expr("total_hours_volunteered + ?", hours)).Error
	if err != nil {
		return fmt.Errorf("error crediting volunteer hours: %w", err)
	}
	return nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
