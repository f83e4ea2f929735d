package commitment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type CommitmentHandler struct {
	service *Service
	auth    *utils.Auth
	logger  *zap.Logger
}

func NewCommitmentHandler(service *Service, auth *utils.Auth, logger *zap.Logger) *CommitmentHandler {
	return &CommitmentHandler{service: service, auth: auth, logger: logger}
}

func (h *CommitmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/commitments", h.auth.Middleware(h.ListCommitments)).Methods("GET")
	router.HandleFunc("/commitments", h.auth.Middleware(h.Apply)).Methods("POST")
	router.HandleFunc("/commitments/filter", h.auth.Middleware(h.FilterCommitments)).Methods("POST")
	router.HandleFunc("/commitments/business/{businessId:[0-9]+}", h.auth.Middleware(h.GetBusinessCommitments)).Methods("GET")
	router.HandleFunc("/commitments/{id:[0-9]+}", h.auth.Middleware(h.GetCommitment)).Methods("GET")
	router.HandleFunc("/commitments/{id:[0-9]+}", h.auth.Middleware(h.UpdateCommitment)).Methods("PUT")
	router.HandleFunc("/commitments/{id:[0-9]+}", h.auth.Middleware(h.DeleteCommitment)).Methods("DELETE")
}

func listOptions(r *http.Request) ListOptions {
	q := r.URL.Query()
	return ListOptions{
		Statuses: utils.SplitList(q.Get("status")),
		Sort:     q.Get("sort"),
		Limit:    utils.QueryLimit(r, 100, 500),
	}
}

func (h *CommitmentHandler) ListCommitments(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	commitments, err := h.service.ListForVolunteer(r.Context(), userID, listOptions(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, commitments)
}

// Apply creates a commitment for the authenticated volunteer.
func (h *CommitmentHandler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Apply(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, result.Commitment)
}

// FilterCommitments returns a business's commitments when the caller owns it,
// otherwise the caller's own commitments.
func (h *CommitmentHandler) FilterCommitments(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req struct {
		BusinessID uint     `json:"business_id"`
		Status     []string `json:"status"`
		Sort       string   `json:"sort"`
		Limit      int      `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	opts := ListOptions{Statuses: req.Status, Sort: req.Sort, Limit: req.Limit}

	if req.BusinessID != 0 {
		commitments, err := h.service.ListForBusiness(r.Context(), userID, req.BusinessID, opts)
		if err == nil {
			utils.WriteJSON(w, http.StatusOK, commitments)
			return
		}
		if !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrBusinessNotFound) {
			h.writeError(w, err)
			return
		}
	}

	commitments, err := h.service.ListForVolunteer(r.Context(), userID, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, commitments)
}

func (h *CommitmentHandler) GetBusinessCommitments(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	businessID, err := utils.PathID(r, "businessId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid business ID")
		return
	}

	commitments, err := h.service.ListForBusiness(r.Context(), userID, businessID, listOptions(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, commitments)
}

func (h *CommitmentHandler) GetCommitment(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid commitment ID")
		return
	}

	commitment, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, commitment)
}

// UpdateCommitment applies detail edits and a status change as one update.
func (h *CommitmentHandler) UpdateCommitment(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid commitment ID")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.HasDetails() && req.Status == nil {
		utils.WriteError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	commitment, err := h.service.Update(r.Context(), userID, id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, commitment)
}

func (h *CommitmentHandler) DeleteCommitment(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid commitment ID")
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *CommitmentHandler) writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		utils.WriteError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, ErrVolunteerNotFound),
		errors.Is(err, ErrOpportunityNotFound),
		errors.Is(err, ErrBusinessNotFound),
		errors.Is(err, ErrCommitmentNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		utils.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrOpportunityFull),
		errors.Is(err, ErrOpportunityClosed),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrStatusConflict),
		errors.Is(err, ErrNotEditable):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Commitment request failed", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
