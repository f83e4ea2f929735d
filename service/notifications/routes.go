package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("not authorized")

// Sender is satisfied by *Notifier.
type Sender interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// NotificationHandler serves the notification inbox, device registration and
// the live notification socket.
type NotificationHandler struct {
	store    Store
	sender   Sender
	auth     *utils.Auth
	ws       http.HandlerFunc
	logger   *zap.Logger
	validate *validator.Validate
}

// NewNotificationHandler wires the handler. ws serves GET /ws and may be nil.
func NewNotificationHandler(store Store, sender Sender, auth *utils.Auth, ws http.HandlerFunc, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{store: store, sender: sender, auth: auth, ws: ws, logger: logger, validate: validator.New()}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/notifications", h.auth.Middleware(h.ListNotifications)).Methods("GET")
	router.HandleFunc("/notifications", h.auth.Middleware(h.SendNotification)).Methods("POST")
	router.HandleFunc("/notifications/filter", h.auth.Middleware(h.FilterNotifications)).Methods("POST")
	router.HandleFunc("/notifications/unread-count", h.auth.Middleware(h.UnreadCount)).Methods("GET")
	router.HandleFunc("/notifications/read-all", h.auth.Middleware(h.MarkAllRead)).Methods("PUT")
	router.HandleFunc("/notifications/{id:[0-9]+}/read", h.auth.Middleware(h.MarkRead)).Methods("PUT")
	router.HandleFunc("/notifications/{id:[0-9]+}", h.auth.Middleware(h.DeleteNotification)).Methods("DELETE")

	router.HandleFunc("/devices", h.auth.Middleware(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices/{id:[0-9]+}", h.auth.Middleware(h.DeleteDevice)).Methods("DELETE")

	if h.ws != nil {
		router.HandleFunc("/ws", h.auth.SocketMiddleware(h.ws)).Methods("GET")
	}
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	f := Filter{Limit: utils.QueryLimit(r, 50, 200)}
	if r.URL.Query().Get("unread") == "true" {
		unread := false
		f.IsRead = &unread
	}
	h.list(w, r, f)
}

// FilterNotifications accepts {"filters": {"type": "reminder", "is_read": false}, "sort": "-created_at", "limit": 20}
// and only ever searches the caller's inbox.
func (h *NotificationHandler) FilterNotifications(w http.ResponseWriter, r *http.Request) {
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
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	h.list(w, r, f)
}

func (h *NotificationHandler) list(w http.ResponseWriter, r *http.Request, f Filter) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	notifications, err := h.store.ListNotifications(r.Context(), userID, f)
	if err != nil {
		h.internalError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, notifications)
}

// SendNotification stores and delivers a notification. Callers may notify
// themselves, or the volunteer of a commitment made to a business they own.
func (h *NotificationHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req struct {
		UserID              uint   `json:"user_id"`
		Type                string `json:"type" validate:"omitempty,oneof=application_received application_approved application_rejected reminder message"`
		Title               string `json:"title" validate:"required,max=255"`
		Message             string `json:"message" validate:"max=2000"`
		RelatedCommitmentID *uint  `json:"related_commitment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "A title and a known notification type are required")
		return
	}

	n := &models.Notification{
		UserID:              req.UserID,
		Type:                req.Type,
		Title:               req.Title,
		Message:             req.Message,
		RelatedCommitmentID: req.RelatedCommitmentID,
	}
	if n.UserID == 0 {
		n.UserID = userID
	}
	if n.Type == "" {
		n.Type = models.NotificationMessage
	}

	if req.RelatedCommitmentID != nil {
		parties, err := h.store.CommitmentParties(r.Context(), *req.RelatedCommitmentID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		involved := userID == parties.VolunteerID || userID == parties.OwnerID
		recipientInvolved := n.UserID == parties.VolunteerID || n.UserID == parties.OwnerID
		if !involved || !recipientInvolved {
			h.writeError(w, ErrForbidden)
			return
		}
		n.RelatedBusinessID = &parties.BusinessID
	} else if n.UserID != userID {
		h.writeError(w, ErrForbidden)
		return
	}

	if err := h.sender.Notify(r.Context(), n); err != nil {
		h.internalError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, n)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	count, err := h.store.UnreadCount(r.Context(), userID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	if err := h.store.MarkRead(r.Context(), userID, id); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	updated, err := h.store.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "updated": updated})
}

func (h *NotificationHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	if err := h.store.DeleteNotification(r.Context(), userID, id); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RegisterDevice stores an Expo push token for the authenticated user.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req struct {
		Token      string `json:"token"`
		DeviceType string `json:"device_type"`
		DeviceName string `json:"device_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := expo.NewExponentPushToken(req.Token); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid Expo push token format")
		return
	}

	device := models.Device{Token: req.Token, UserID: userID, DeviceType: req.DeviceType, DeviceName: req.DeviceName}
	if err := h.store.UpsertDevice(r.Context(), &device); err != nil {
		h.internalError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid device ID")
		return
	}

	if err := h.store.DeleteDevice(r.Context(), userID, id); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Device deleted successfully"})
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotificationNotFound), errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrCommitmentNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		utils.WriteError(w, http.StatusForbidden, "Not authorized")
	default:
		h.internalError(w, err)
	}
}

func (h *NotificationHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("Notification request failed", zap.Error(err))
	utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
}
