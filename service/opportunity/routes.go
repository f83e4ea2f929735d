package opportunity

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("not authorized to manage opportunities for this business")

type OpportunityHandler struct {
	store    Store
	auth     *utils.Auth
	logger   *zap.Logger
	validate *validator.Validate
}

func NewOpportunityHandler(store Store, auth *utils.Auth, logger *zap.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, auth: auth, logger: logger, validate: validator.New()}
}

func (h *OpportunityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/opportunities", h.ListOpportunities).Methods("GET")
	router.HandleFunc("/opportunities", h.auth.Middleware(h.CreateOpportunity)).Methods("POST")
	router.HandleFunc("/opportunities/filter", h.FilterOpportunities).Methods("POST")
	router.HandleFunc("/opportunities/business/{businessId:[0-9]+}", h.GetBusinessOpportunities).Methods("GET")
	router.HandleFunc("/opportunities/{id:[0-9]+}", h.GetOpportunity).Methods("GET")
	router.HandleFunc("/opportunities/{id:[0-9]+}", h.auth.Middleware(h.UpdateOpportunity)).Methods("PUT")
	router.HandleFunc("/opportunities/{id:[0-9]+}", h.auth.Middleware(h.DeleteOpportunity)).Methods("DELETE")
}

type opportunityRequest struct {
	BusinessID   uint      `json:"business_id"`
	Title        *string   `json:"title" validate:"omitempty,min=1,max=255"`
	Description  *string   `json:"description" validate:"omitempty,max=5000"`
	SkillsNeeded *[]string `json:"skills_needed"`
	HoursPerWeek *int      `json:"hours_per_week" validate:"omitempty,min=0,max=168"`
	Urgency      *string   `json:"urgency" validate:"omitempty,oneof=low medium high urgent"`
	SlotsNeeded  *int      `json:"slots_needed" validate:"omitempty,min=0"`
	MinAge       *int      `json:"min_age" validate:"omitempty,min=0,max=120"`
	AutoAccept   *bool     `json:"auto_accept"`
	Status       *string   `json:"status" validate:"omitempty,oneof=open in_progress completed cancelled"`
	StartDate    *string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

func (req *opportunityRequest) apply(o *models.Opportunity) {
	if req.Title != nil {
		o.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		o.Description = *req.Description
	}
	if req.SkillsNeeded != nil {
		o.SkillsNeeded = *req.SkillsNeeded
	}
	if req.HoursPerWeek != nil {
		o.HoursPerWeek = *req.HoursPerWeek
	}
	if req.Urgency != nil {
		o.Urgency = *req.Urgency
	}
	if req.SlotsNeeded != nil {
		o.SlotsNeeded = *req.SlotsNeeded
	}
	if req.MinAge != nil {
		o.MinAge = *req.MinAge
	}
	if req.AutoAccept != nil {
		o.AutoAccept = *req.AutoAccept
	}
	if req.Status != nil {
		o.Status = *req.Status
	}
	if req.StartDate != nil {
		// validated as a date above
		startDate, _ := time.Parse(models.DateLayout, *req.StartDate)
		o.StartDate = &startDate
	}
}

func (h *OpportunityHandler) decode(w http.ResponseWriter, r *http.Request) (*opportunityRequest, bool) {
	var req opportunityRequest
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

func (h *OpportunityHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		Status:  q.Get("status"),
		Urgency: q.Get("urgency"),
		Sort:    q.Get("sort"),
		Limit:   utils.QueryLimit(r, 100, 500),
	}
	if raw := q.Get("business_id"); raw != "" {
		businessID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "Invalid business ID")
			return
		}
		f.BusinessID = uint(businessID)
	}
	h.list(w, r, f)
}

// FilterOpportunities accepts {"filters": {...}, "sort": "-created_at", "limit": 20}.
func (h *OpportunityHandler) FilterOpportunities(w http.ResponseWriter, r *http.Request) {
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

func (h *OpportunityHandler) GetBusinessOpportunities(w http.ResponseWriter, r *http.Request) {
	businessID, err := utils.PathID(r, "businessId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid business ID")
		return
	}
	h.list(w, r, Filter{BusinessID: businessID, Status: r.URL.Query().Get("status")})
}

func (h *OpportunityHandler) list(w http.ResponseWriter, r *http.Request, f Filter) {
	opportunities, err := h.store.ListOpportunities(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, opportunities)
}

func (h *OpportunityHandler) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid opportunity ID")
		return
	}
	opportunity, err := h.store.GetOpportunity(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, opportunity)
}

func (h *OpportunityHandler) ownedBusiness(r *http.Request, businessID uint) (*models.Business, error) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	business, err := h.store.GetBusiness(r.Context(), businessID)
	if err != nil {
		return nil, err
	}
	if business.OwnerID != userID {
		return nil, ErrForbidden
	}
	return business, nil
}

// CreateOpportunity posts a new opening for a business the caller owns.
// It always starts with no slots filled.
func (h *OpportunityHandler) CreateOpportunity(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.BusinessID == 0 {
		utils.WriteError(w, http.StatusBadRequest, "business_id is required")
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		utils.WriteError(w, http.StatusBadRequest, "Title is required")
		return
	}

	business, err := h.ownedBusiness(r, req.BusinessID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	opportunity := &models.Opportunity{
		BusinessID:   business.ID,
		BusinessName: business.Name,
		Urgency:      "medium",
		Status:       models.OpportunityOpen,
	}
	req.apply(opportunity)
	if err := h.store.CreateOpportunity(r.Context(), opportunity); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, opportunity)
}

func (h *OpportunityHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Opportunity, bool) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid opportunity ID")
		return nil, false
	}
	opportunity, err := h.store.GetOpportunity(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	if _, err := h.ownedBusiness(r, opportunity.BusinessID); err != nil {
		if errors.Is(err, ErrBusinessNotFound) {
			err = ErrForbidden
		}
		h.writeError(w, err)
		return nil, false
	}
	return opportunity, true
}

func (h *OpportunityHandler) UpdateOpportunity(w http.ResponseWriter, r *http.Request) {
	opportunity, ok := h.owned(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	req.apply(opportunity)
	if opportunity.SlotsNeeded > 0 && opportunity.SlotsNeeded < opportunity.SlotsFilled {
		h.writeError(w, ErrSlotsBelowFilled)
		return
	}
	if err := h.store.UpdateOpportunity(r.Context(), opportunity); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, opportunity)
}

func (h *OpportunityHandler) DeleteOpportunity(w http.ResponseWriter, r *http.Request) {
	opportunity, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteOpportunity(r.Context(), opportunity.ID); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *OpportunityHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOpportunityNotFound):
		utils.WriteError(w, http.StatusNotFound, "Opportunity not found")
	case errors.Is(err, ErrBusinessNotFound):
		utils.WriteError(w, http.StatusNotFound, "Business not found")
	case errors.Is(err, ErrForbidden):
		utils.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSlotsBelowFilled):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Opportunity request failed", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
