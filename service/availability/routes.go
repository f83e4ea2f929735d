package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/KAsare1/commonthread-server/service/eligibility"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type AvailabilityHandler struct {
	store  Store
	auth   *utils.Auth
	logger *zap.Logger
}

func NewAvailabilityHandler(store Store, auth *utils.Auth, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{store: store, auth: auth, logger: logger}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	path := "/availability/{year:[0-9]{4}}/{month:[0-9]{1,2}}"
	router.HandleFunc(path, h.auth.Middleware(h.GetAvailability)).Methods("GET")
	router.HandleFunc(path, h.auth.Middleware(h.SetAvailability)).Methods("PUT")
	router.HandleFunc(path, h.auth.Middleware(h.DeleteAvailability)).Methods("DELETE")
}

// MonthSummary is the volunteer's hour budget for one calendar month.
type MonthSummary struct {
	Year           int  `json:"year"`
	Month          int  `json:"month"`
	HoursAvailable int  `json:"hours_available"`
	IsOverride     bool `json:"is_override"`
	ScheduledHours int  `json:"scheduled_hours"`
	RemainingHours int  `json:"remaining_hours"`
}

func yearMonth(r *http.Request) (int, int, bool) {
	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	year, month, ok := yearMonth(r)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid year or month")
		return
	}
	h.writeSummary(w, r, userID, year, month)
}

// SetAvailability overrides the profile hours budget for one month.
func (h *AvailabilityHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	year, month, ok := yearMonth(r)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid year or month")
		return
	}

	var req struct {
		HoursAvailable *int `json:"hours_available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.HoursAvailable == nil || *req.HoursAvailable < 0 {
		utils.WriteError(w, http.StatusBadRequest, "hours_available must be zero or more")
		return
	}

	override := &models.MonthlyAvailability{UserID: userID, Year: year, Month: month, HoursAvailable: *req.HoursAvailable}
	if err := h.store.UpsertOverride(r.Context(), override); err != nil {
		h.internalError(w, err)
		return
	}
	h.writeSummary(w, r, userID, year, month)
}

// DeleteAvailability drops the override so the month falls back to the profile budget.
func (h *AvailabilityHandler) DeleteAvailability(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	year, month, ok := yearMonth(r)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid year or month")
		return
	}

	if err := h.store.DeleteOverride(r.Context(), userID, year, month); err != nil {
		if errors.Is(err, ErrOverrideNotFound) {
			utils.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeSummary(w, r, userID, year, month)
}

func (h *AvailabilityHandler) writeSummary(w http.ResponseWriter, r *http.Request, userID uint, year, month int) {
	summary, err := h.summary(r, userID, year, month)
	if errors.Is(err, ErrUserNotFound) {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

func (h *AvailabilityHandler) summary(r *http.Request, userID uint, year, month int) (*MonthSummary, error) {
	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		return nil, err
	}

	summary := &MonthSummary{Year: year, Month: month, HoursAvailable: user.HoursAvailable}
	override, err := h.store.GetOverride(r.Context(), userID, year, month)
	switch {
	case err == nil:
		summary.HoursAvailable = override.HoursAvailable
		summary.IsOverride = true
	case !errors.Is(err, ErrOverrideNotFound):
		return nil, err
	}

	active, err := h.store.ActiveCommitments(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	bookings := make([]eligibility.Booking, 0, len(active))
	for _, c := range active {
		bookings = append(bookings, eligibility.Booking{Hours: c.HoursCommitted, StartDate: c.StartDate})
	}
	summary.ScheduledHours = eligibility.ScheduledHours(bookings, time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
	summary.RemainingHours = summary.HoursAvailable - summary.ScheduledHours
	return summary, nil
}

func (h *AvailabilityHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("Availability request failed", zap.Error(err))
	utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
}
