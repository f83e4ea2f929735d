package reviews

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("not authorized")

type ReviewHandler struct {
	store    Store
	auth     *utils.Auth
	logger   *zap.Logger
	validate *validator.Validate
}

func NewReviewHandler(store Store, auth *utils.Auth, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{store: store, auth: auth, logger: logger, validate: validator.New()}
}

func (h *ReviewHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/reviews/business/{businessId:[0-9]+}", h.ListBusinessReviews).Methods("GET")
	router.HandleFunc("/reviews/filter", h.FilterReviews).Methods("POST")
	router.HandleFunc("/reviews", h.auth.Middleware(h.CreateReview)).Methods("POST")
	router.HandleFunc("/reviews/{id:[0-9]+}", h.auth.Middleware(h.UpdateReview)).Methods("PUT")
	router.HandleFunc("/reviews/{id:[0-9]+}", h.auth.Middleware(h.DeleteReview)).Methods("DELETE")
}

func (h *ReviewHandler) ListBusinessReviews(w http.ResponseWriter, r *http.Request) {
	businessID, err := utils.PathID(r, "businessId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid business ID")
		return
	}
	h.list(w, r, Filter{BusinessID: businessID, Limit: utils.QueryLimit(r, 100, 500)})
}

// FilterReviews accepts {"filters": {"business_id": 10, "min_rating": 4}, "sort": "-rating", "limit": 20}.
// Reviews are public, like the per-business listing.
func (h *ReviewHandler) FilterReviews(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filters Filter `json:"filters"`
		Sort    string `json:"sort"`
		Limit   int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f := req.Filters
	f.Sort = req.Sort
	f.Limit = req.Limit
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	h.list(w, r, f)
}

func (h *ReviewHandler) list(w http.ResponseWriter, r *http.Request, f Filter) {
	reviews, err := h.store.ListReviews(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reviews)
}

// CreateReview adds the caller's review of a business and refreshes the
// business rating in the same transaction.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req struct {
		BusinessID uint   `json:"business_id" validate:"required"`
		Rating     int    `json:"rating" validate:"required,min=1,max=5"`
		Comment    string `json:"comment" validate:"max=2000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Business ID and a rating between 1 and 5 are required")
		return
	}

	review := &models.Review{UserID: userID, BusinessID: req.BusinessID, Rating: req.Rating, Comment: req.Comment}
	err := h.store.Transaction(r.Context(), func(tx Store) error {
		user, err := tx.GetUser(r.Context(), userID)
		if err != nil {
			return err
		}
		if _, err := tx.GetBusiness(r.Context(), req.BusinessID); err != nil {
			return err
		}
		review.UserName = user.FullName
		if err := tx.CreateReview(r.Context(), review); err != nil {
			return err
		}
		return tx.RefreshRating(r.Context(), review.BusinessID)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid review ID")
		return
	}

	var req struct {
		Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
		Comment *string `json:"comment" validate:"omitempty,max=2000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	var review *models.Review
	err = h.store.Transaction(r.Context(), func(tx Store) error {
		var err error
		review, err = tx.GetReview(r.Context(), id)
		if err != nil {
			return err
		}
		if review.UserID != userID {
			return ErrForbidden
		}
		if req.Rating != nil {
			review.Rating = *req.Rating
		}
		if req.Comment != nil {
			review.Comment = *req.Comment
		}
		if err := tx.UpdateReview(r.Context(), review); err != nil {
			return err
		}
		return tx.RefreshRating(r.Context(), review.BusinessID)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid review ID")
		return
	}

	err = h.store.Transaction(r.Context(), func(tx Store) error {
		review, err := tx.GetReview(r.Context(), id)
		if err != nil {
			return err
		}
		if review.UserID != userID {
			return ErrForbidden
		}
		if err := tx.DeleteReview(r.Context(), id); err != nil {
			return err
		}
		return tx.RefreshRating(r.Context(), review.BusinessID)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ReviewHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrReviewNotFound):
		utils.WriteError(w, http.StatusNotFound, "Review not found")
	case errors.Is(err, ErrBusinessNotFound), errors.Is(err, ErrUserNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		utils.WriteError(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, ErrAlreadyReviewed):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Review request failed", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
