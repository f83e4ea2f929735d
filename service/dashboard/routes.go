package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrBusinessNotFound = errors.New("business not found")

type BusinessStats struct {
	BusinessID          uint    `json:"business_id"`
	OpenOpportunities   int64   `json:"open_opportunities"`
	PendingApplications int64   `json:"pending_applications"`
	ConfirmedVolunteers int64   `json:"confirmed_volunteers"`
	TotalHours          int64   `json:"total_hours"`
	AverageRating       float64 `json:"average_rating"`
	TotalReviews        int     `json:"total_reviews"`
}

type Store interface {
	GetBusiness(ctx context.Context, id uint) (*models.Business, error)
	// Stats counts a business's activity. Rating fields are left to the caller.
	Stats(ctx context.Context, businessID uint) (*BusinessStats, error)
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

func (s *GormStore) Stats(ctx context.Context, businessID uint) (*BusinessStats, error) {
	db := s.db.WithContext(ctx)
	stats := &BusinessStats{BusinessID: businessID}

	if err := db.Model(&models.Opportunity{}).
		Where("business_id = ? AND status = ?", businessID, models.OpportunityOpen).
		Count(&stats.OpenOpportunities).Error; err != nil {
		return nil, fmt.Errorf("error counting opportunities: %w", err)
	}

	var row struct {
		Pending   int64
		Confirmed int64
		Hours     int64
	}
	err := db.Model(&models.Commitment{}).
		Select(`COUNT(*) FILTER (WHERE status = ?) AS pending,
			COUNT(DISTINCT volunteer_id) FILTER (WHERE status IN ?) AS confirmed,
			COALESCE(SUM(hours_committed) FILTER (WHERE status IN ?), 0) AS hours`,
			models.CommitmentPending,
			models.ActiveCommitmentStatuses,
			[]string{models.CommitmentConfirmed, models.CommitmentInProgress, models.CommitmentCompleted}).
		Where("business_id = ?", businessID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("error aggregating commitments: %w", err)
	}
	stats.PendingApplications = row.Pending
	stats.ConfirmedVolunteers = row.Confirmed
	stats.TotalHours = row.Hours
	return stats, nil
}

type DashboardHandler struct {
	store  Store
	auth   *utils.Auth
	logger *zap.Logger
}

func NewDashboardHandler(store Store, auth *utils.Auth, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{store: store, auth: auth, logger: logger}
}

func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	dashboardRouter := router.PathPrefix("/dashboard").Subrouter()
	dashboardRouter.HandleFunc("/business/{id:[0-9]+}", h.auth.Middleware(h.GetBusinessStats)).Methods("GET")
}

// GetBusinessStats is visible to the business owner only.
func (h *DashboardHandler) GetBusinessStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid business ID")
		return
	}

	business, err := h.store.GetBusiness(r.Context(), id)
	if errors.Is(err, ErrBusinessNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Business not found")
		return
	}
	if err != nil {
		h.internalError(w, err)
		return
	}
	if business.OwnerID != userID {
		utils.WriteError(w, http.StatusForbidden, "Not authorized to view this dashboard")
		return
	}

	stats, err := h.store.Stats(r.Context(), business.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	stats.AverageRating = business.AverageRating
	stats.TotalReviews = business.TotalReviews
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (h *DashboardHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("Failed to fetch dashboard stats", zap.Error(err))
	utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch dashboard stats")
}
