package opportunity

import (
	"context"
	"errors"
	"fmt"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"gorm.io/gorm"
)

var (
	ErrOpportunityNotFound = errors.New("opportunity not found")
	ErrBusinessNotFound    = errors.New("business not found")
	ErrSlotsBelowFilled    = errors.New("slots_needed cannot be lower than the slots already filled")
)

// Filter narrows ListOpportunities. Zero values are ignored.
type Filter struct {
	Status     string `json:"status"`
	BusinessID uint   `json:"business_id"`
	Urgency    string `json:"urgency"`
	Sort       string `json:"-"`
	Limit      int    `json:"-"`
}

type Store interface {
	ListOpportunities(ctx context.Context, f Filter) ([]models.Opportunity, error)
	GetOpportunity(ctx context.Context, id uint) (*models.Opportunity, error)
	GetBusiness(ctx context.Context, id uint) (*models.Business, error)
	CreateOpportunity(ctx context.Context, o *models.Opportunity) error
	// UpdateOpportunity writes the owner-editable columns. slots_filled is
	// only ever changed by the commitment workflow, and a limit below it is
	// rejected with ErrSlotsBelowFilled.
	UpdateOpportunity(ctx context.Context, o *models.Opportunity) error
	DeleteOpportunity(ctx context.Context, id uint) error
}

var opportunitySortFields = map[string]bool{
	"created_at":     true,
	"start_date":     true,
	"title":          true,
	"hours_per_week": true,
	"slots_needed":   true,
	"urgency":        true,
}

var editableColumns = []string{
	"title", "description", "skills_needed", "hours_per_week", "urgency",
	"slots_needed", "min_age", "auto_accept", "status", "start_date",
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ListOpportunities(ctx context.Context, f Filter) ([]models.Opportunity, error) {
	query := s.db.WithContext(ctx).Model(&models.Opportunity{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.BusinessID != 0 {
		query = query.Where("business_id = ?", f.BusinessID)
	}
	if f.Urgency != "" {
		query = query.Where("urgency = ?", f.Urgency)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var opportunities []models.Opportunity
	err := query.Order(utils.OrderClause(f.Sort, opportunitySortFields, "created_at DESC")).Find(&opportunities).Error
	if err != nil {
		return nil, fmt.Errorf("error listing opportunities: %w", err)
	}
	return opportunities, nil
}

func (s *GormStore) GetOpportunity(ctx context.Context, id uint) (*models.Opportunity, error) {
	var o models.Opportunity
	err := s.db.WithContext(ctx).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOpportunityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading opportunity %d: %w", id, err)
	}
	return &o, nil
}

func (s *GormStore) GetBusiness(ctx context.Context, id uint) (*models.Business, error) {
	var b models.Business
	err := s.db.WithContext(ctx).First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBusinessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading business %d: %w", id, err)
	}
	return &b, nil
}

func (s *GormStore) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	o.SlotsFilled = 0
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("error creating opportunity: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateOpportunity(ctx context.Context, o *models.Opportunity) error {
	result := s.db.WithContext(ctx).Model(o).
		Where("? = 0 OR slots_filled <= ?", o.SlotsNeeded, o.SlotsNeeded).
		Select(editableColumns).
		Updates(o)
	if result.Error != nil {
		return fmt.Errorf("error updating opportunity %d: %w", o.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSlotsBelowFilled
	}
	return nil
}

func (s *GormStore) DeleteOpportunity(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Opportunity{}, id)
	if result.Error != nil {
		return fmt.Errorf("error deleting opportunity %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOpportunityNotFound
	}
	return nil
}
