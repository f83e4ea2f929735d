package favorites

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
	ErrFavoriteNotFound = errors.New("favorite not found")
	ErrBusinessNotFound = errors.New("business not found")
	ErrAlreadyFavorited = errors.New("already favorited")
)

// Filter narrows ListFavorites. Zero values are ignored.
type Filter struct {
	BusinessID uint   `json:"business_id"`
	Sort       string `json:"-"`
	Limit      int    `json:"-"`
}

var favoriteSortFields = map[string]bool{
	"created_at":    true,
	"business_name": true,
}

type Store interface {
	GetBusiness(ctx context.Context, id uint) (*models.Business, error)
	ListFavorites(ctx context.Context, userID uint, f Filter) ([]models.Favorite, error)
	CreateFavorite(ctx context.Context, f *models.Favorite) error
	// DeleteFavorite removes one of the user's favorites by id.
	DeleteFavorite(ctx context.Context, userID, id uint) error
	DeleteFavoriteByBusiness(ctx context.Context, userID, businessID uint) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
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

func (s *GormStore) ListFavorites(ctx context.Context, userID uint, f Filter) ([]models.Favorite, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.BusinessID != 0 {
		query = query.Where("business_id = ?", f.BusinessID)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var favorites []models.Favorite
	err := query.Order(utils.OrderClause(f.Sort, favoriteSortFields, "created_at DESC")).Find(&favorites).Error
	if err != nil {
		return nil, fmt.Errorf("error listing favorites: %w", err)
	}
	return favorites, nil
}

func (s *GormStore) CreateFavorite(ctx context.Context, f *models.Favorite) error {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return ErrAlreadyFavorited
		}
		return fmt.Errorf("error creating favorite: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteFavorite(ctx context.Context, userID, id uint) error {
	return s.delete(ctx, s.db.Where("id = ? AND user_id = ?", id, userID))
}

func (s *GormStore) DeleteFavoriteByBusiness(ctx context.Context, userID, businessID uint) error {
	return s.delete(ctx, s.db.Where("business_id = ? AND user_id = ?", businessID, userID))
}

func (s *GormStore) delete(ctx context.Context, scope *gorm.DB) error {
	result := scope.WithContext(ctx).Unscoped().Delete(&models.Favorite{})
	if result.Error != nil {
		return fmt.Errorf("error deleting favorite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}
