package reviews

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"gorm.io/gorm"
)

var (
	ErrReviewNotFound   = errors.New("review not found")
	ErrBusinessNotFound = errors.New("business not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrAlreadyReviewed  = errors.New("you have already reviewed this business")
)

// Filter narrows ListReviews. Zero values are ignored.
type Filter struct {
	BusinessID uint   `json:"business_id"`
	UserID     uint   `json:"user_id"`
	MinRating  int    `json:"min_rating"`
	Sort       string `json:"-"`
	Limit      int    `json:"-"`
}

var reviewSortFields = map[string]bool{
	"created_at": true,
	"rating":     true,
}

type Store interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetBusiness(ctx context.Context, id uint) (*models.Business, error)
	GetReview(ctx context.Context, id uint) (*models.Review, error)
	ListReviews(ctx context.Context, f Filter) ([]models.Review, error)
	CreateReview(ctx context.Context, r *models.Review) error
	UpdateReview(ctx context.Context, r *models.Review) error
	DeleteReview(ctx context.Context, id uint) error
	// RefreshRating recomputes the business average_rating and total_reviews
	// from its reviews.
	RefreshRating(ctx context.Context, businessID uint) error

	Transaction(ctx context.Context, fn func(Store) error) error
}

// RoundRating keeps one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
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
	var u models.User
	if err := s.first(ctx, &u, id, ErrUserNotFound); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) GetBusiness(ctx context.Context, id uint) (*models.Business, error) {
	var b models.Business
	if err := s.first(ctx, &b, id, ErrBusinessNotFound); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) GetReview(ctx context.Context, id uint) (*models.Review, error) {
	var r models.Review
	if err := s.first(ctx, &r, id, ErrReviewNotFound); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) ListReviews(ctx context.Context, f Filter) ([]models.Review, error) {
	query := s.db.WithContext(ctx).Model(&models.Review{})
	if f.BusinessID != 0 {
		query = query.Where("business_id = ?", f.BusinessID)
	}
	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.MinRating > 0 {
		query = query.Where("rating >= ?", f.MinRating)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var reviews []models.Review
	err := query.Order(utils.OrderClause(f.Sort, reviewSortFields, "created_at DESC")).Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("error listing reviews: %w", err)
	}
	return reviews, nil
}

func (s *GormStore) CreateReview(ctx context.Context, r *models.Review) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("error creating review: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateReview(ctx context.Context, r *models.Review) error {
	err := s.db.WithContext(ctx).Model(r).Select("rating", "comment").Updates(r).Error
	if err != nil {
		return fmt.Errorf("error updating review %d: %w", r.ID, err)
	}
	return nil
}

func (s *GormStore) DeleteReview(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Unscoped().Delete(&models.Review{}, id)
	if result.Error != nil {
		return fmt.Errorf("error deleting review %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (s *GormStore) RefreshRating(ctx context.Context, businessID uint) error {
	var agg struct {
		Average float64
		Total   int
	}
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where("business_id = ?", businessID).
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("error aggregating reviews: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&models.Business{}).
		Where("id = ?", businessID).
		Updates(map[string]interface{}{
			"average_rating": RoundRating(agg.Average),
			"total_reviews":  agg.Total,
		}).Error
	if err != nil {
		return fmt.Errorf("error updating business rating: %w", err)
	}
	return nil
}
