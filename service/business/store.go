package business

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"gorm.io/gorm"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrAlreadyOwner     = errors.New("user already owns a business")
)

// Filter narrows ListBusinesses. Zero values are ignored.
type Filter struct {
	Category  string  `json:"category"`
	OwnerID   uint    `json:"owner_id"`
	Name      string  `json:"name"`
	MinRating float64 `json:"min_rating"`
	Sort      string  `json:"-"`
	Limit     int     `json:"-"`
}

type Store interface {
	ListBusinesses(ctx context.Context, f Filter) ([]models.Business, error)
	GetBusiness(ctx context.Context, id uint) (*models.Business, error)
	GetBusinessByOwner(ctx context.Context, ownerID uint) (*models.Business, error)
	CreateBusiness(ctx context.Context, b *models.Business) error
	// UpdateBusiness writes the owner-editable columns only.
	UpdateBusiness(ctx context.Context, b *models.Business) error
	DeleteBusiness(ctx context.Context, id uint) error
}

var businessSortFields = map[string]bool{
	"created_at":     true,
	"name":           true,
	"category":       true,
	"average_rating": true,
	"total_reviews":  true,
}

var editableColumns = []string{
	"name", "description", "category", "address", "phone", "website", "logo_url", "min_volunteer_age",
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ListBusinesses(ctx context.Context, f Filter) ([]models.Business, error) {
	query := s.db.WithContext(ctx).Model(&models.Business{})
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.OwnerID != 0 {
		query = query.Where("owner_id = ?", f.OwnerID)
	}
	if f.Name != "" {
		query = query.Where("name ILIKE ?", "%"+strings.ReplaceAll(f.Name, "%", `\%`)+"%")
	}
	if f.MinRating > 0 {
		query = query.Where("average_rating >= ?", f.MinRating)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var businesses []models.Business
	err := query.Order(utils.OrderClause(f.Sort, businessSortFields, "created_at DESC")).Find(&businesses).Error
	if err != nil {
		return nil, fmt.Errorf("error listing businesses: %w", err)
	}
	return businesses, nil
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

func (s *GormStore) GetBusinessByOwner(ctx context.Context, ownerID uint) (*models.Business, error) {
	var b models.Business
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBusinessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading business for owner %d: %w", ownerID, err)
	}
	return &b, nil
}

func (s *GormStore) CreateBusiness(ctx context.Context, b *models.Business) error {
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return ErrAlreadyOwner
		}
		return fmt.Errorf("error creating business: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateBusiness(ctx context.Context, b *models.Business) error {
	result := s.db.WithContext(ctx).Model(b).Select(editableColumns).Updates(b)
	if result.Error != nil {
		return fmt.Errorf("error updating business %d: %w", b.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBusinessNotFound
	}
	return nil
}

func (s *GormStore) DeleteBusiness(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Business{}, id)
	if result.Error != nil {
		return fmt.Errorf("error deleting business %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBusinessNotFound
	}
	return nil
}
