package business

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("not authorized to modify this business")

type BusinessHandler struct {
	store     Store
	auth      *utils.Auth
	uploadDir string
	logger    *zap.Logger
	validate  *validator.Validate
}

func NewBusinessHandler(store Store, auth *utils.Auth, uploadDir string, logger *zap.Logger) *BusinessHandler {
	return &BusinessHandler{store: store, auth: auth, uploadDir: uploadDir, logger: logger, validate: validator.New()}
}

func (h *BusinessHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/businesses", h.ListBusinesses).Methods("GET")
	router.HandleFunc("/businesses", h.auth.Middleware(h.CreateBusiness)).Methods("POST")
	router.HandleFunc("/businesses/filter", h.FilterBusinesses).Methods("POST")
	router.HandleFunc("/businesses/owner/me", h.auth.Middleware(h.GetMyBusiness)).Methods("GET")
	router.HandleFunc("/businesses/{id:[0-9]+}", h.GetBusiness).Methods("GET")
	router.HandleFunc("/businesses/{id:[0-9]+}", h.auth.Middleware(h.UpdateBusiness)).Methods("PUT")
	router.HandleFunc("/businesses/{id:[0-9]+}", h.auth.Middleware(h.DeleteBusiness)).Methods("DELETE")
	router.HandleFunc("/businesses/{id:[0-9]+}/logo", h.auth.Middleware(h.UploadLogo)).Methods("POST")
}

type businessRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string `json:"description" validate:"omitempty,max=5000"`
	Category        *string `json:"category" validate:"omitempty,max=100"`
	Address         *string `json:"address" validate:"omitempty,max=500"`
	Phone           *string `json:"phone" validate:"omitempty,max=30"`
	Website         *string `json:"website" validate:"omitempty,max=255"`
	LogoURL         *string `json:"logo_url" validate:"omitempty,max=500"`
	MinVolunteerAge *int    `json:"min_volunteer_age" validate:"omitempty,min=0,max=120"`
}

func (req *businessRequest) apply(b *models.Business) {
	if req.Name != nil {
		b.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if req.Category != nil {
		b.Category = *req.Category
	}
	if req.Address != nil {
		b.Address = *req.Address
	}
	if req.Phone != nil {
		b.Phone = *req.Phone
	}
	if req.Website != nil {
		b.Website = *req.Website
	}
	if req.LogoURL != nil {
		b.LogoURL = *req.LogoURL
	}
	if req.MinVolunteerAge != nil {
		b.MinVolunteerAge = *req.MinVolunteerAge
	}
}

func (h *BusinessHandler) decode(w http.ResponseWriter, r *http.Request) (*businessRequest, bool) {
	var req businessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

func (h *BusinessHandler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, Filter{
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
		Limit:    utils.QueryLimit(r, 100, 500),
	})
}

// FilterBusinesses accepts {"filters": {...}, "sort": "-created_at", "limit": 20}.
func (h *BusinessHandler) FilterBusinesses(w http.ResponseWriter, r *http.Request) {
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

func (h *BusinessHandler) list(w http.ResponseWriter, r *http.Request, f Filter) {
	businesses, err := h.store.ListBusinesses(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, businesses)
}

func (h *BusinessHandler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid business ID")
		return
	}
	business, err := h.store.GetBusiness(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, business)
}

func (h *BusinessHandler) GetMyBusiness(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	business, err := h.store.GetBusinessByOwner(r.Context(), userID)
	if errors.Is(err, ErrBusinessNotFound) {
		utils.WriteError(w, http.StatusNotFound, "No business found for this user")
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, business)
}

// CreateBusiness registers the caller's business. Each user owns at most one.
func (h *BusinessHandler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		utils.WriteError(w, http.StatusBadRequest, "Business name is required")
		return
	}

	if _, err := h.store.GetBusinessByOwner(r.Context(), userID); err == nil {
		h.writeError(w, ErrAlreadyOwner)
		return
	} else if !errors.Is(err, ErrBusinessNotFound) {
		h.writeError(w, err)
		return
	}

	business := &models.Business{OwnerID: userID}
	req.apply(business)
	if err := h.store.CreateBusiness(r.Context(), business); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, business)
}

func (h *BusinessHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Business, bool) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid business ID")
		return nil, false
	}
	business, err := h.store.GetBusiness(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	if business.OwnerID != userID {
		h.writeError(w, ErrForbidden)
		return nil, false
	}
	return business, true
}

func (h *BusinessHandler) UpdateBusiness(w http.ResponseWriter, r *http.Request) {
	business, ok := h.owned(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	req.apply(business)
	if err := h.store.UpdateBusiness(r.Context(), business); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, business)
}

func (h *BusinessHandler) DeleteBusiness(w http.ResponseWriter, r *http.Request) {
	business, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteBusiness(r.Context(), business.ID); err != nil {
		h.writeError(w, err)
		return
	}
	if err := utils.DeleteImage(h.uploadDir, business.LogoURL); err != nil {
		h.logger.Warn("Error removing business logo", zap.Uint("business_id", business.ID), zap.Error(err))
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// UploadLogo replaces the business logo with the multipart "logo" file.
func (h *BusinessHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	business, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(utils.MaxImageSize); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Logo file is required")
		return
	}
	defer file.Close()

	logoURL, err := utils.SaveImage(h.uploadDir, file, header)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	previous := business.LogoURL
	business.LogoURL = logoURL
	if err := h.store.UpdateBusiness(r.Context(), business); err != nil {
		if delErr := utils.DeleteImage(h.uploadDir, logoURL); delErr != nil {
			h.logger.Warn("Error removing uploaded logo", zap.String("logo_url", logoURL), zap.Error(delErr))
		}
		h.writeError(w, err)
		return
	}
	if err := utils.DeleteImage(h.uploadDir, previous); err != nil {
		h.logger.Warn("Error removing previous logo", zap.String("logo_url", previous), zap.Error(err))
	}
	utils.WriteJSON(w, http.StatusOK, business)
}

func (h *BusinessHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBusinessNotFound):
		utils.WriteError(w, http.StatusNotFound, "Business not found")
	case errors.Is(err, ErrForbidden):
		utils.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyOwner):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Business request failed", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
