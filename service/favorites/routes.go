package favorites

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type FavoriteHandler struct {
	store  Store
	auth   *utils.Auth
	logger *zap.Logger
}

func NewFavoriteHandler(store Store, auth *utils.Auth, logger *zap.Logger) *FavoriteHandler {
	return &FavoriteHandler{store: store, auth: auth, logger: logger}
}

func (h *FavoriteHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/favorites", h.auth.Middleware(h.ListFavorites)).Methods("GET")
	router.HandleFunc("/favorites", h.auth.Middleware(h.AddFavorite)).Methods("POST")
	router.HandleFunc("/favorites/filter", h.auth.Middleware(h.FilterFavorites)).Methods("POST")
	router.HandleFunc("/favorites/{id:[0-9]+}", h.auth.Middleware(h.DeleteFavorite)).Methods("DELETE")
	router.HandleFunc("/favorites/business/{businessId:[0-9]+}", h.auth.Middleware(h.DeleteBusinessFavorite)).Methods("DELETE")
}

func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, Filter{})
}

// FilterFavorites accepts {"filters": {"business_id": 10}, "sort": "business_name", "limit": 20}
// over the caller's own favorites, which is how clients ask "is this business favorited?".
func (h *FavoriteHandler) FilterFavorites(w http.ResponseWriter, r *http.Request) {
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

func (h *FavoriteHandler) list(w http.ResponseWriter, r *http.Request, f Filter) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	favorites, err := h.store.ListFavorites(r.Context(), userID, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, favorites)
}

func (h *FavoriteHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req struct {
		BusinessID uint `json:"business_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BusinessID == 0 {
		utils.WriteError(w, http.StatusBadRequest, "business_id is required")
		return
	}

	business, err := h.store.GetBusiness(r.Context(), req.BusinessID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	favorite := &models.Favorite{UserID: userID, BusinessID: business.ID, BusinessName: business.Name}
	if err := h.store.CreateFavorite(r.Context(), favorite); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, favorite)
}

func (h *FavoriteHandler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid favorite ID")
		return
	}
	if err := h.store.DeleteFavorite(r.Context(), userID, id); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteBusinessFavorite unfavorites a business without knowing the favorite id.
func (h *FavoriteHandler) DeleteBusinessFavorite(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	businessID, err := utils.PathID(r, "businessId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid business ID")
		return
	}
	if err := h.store.DeleteFavoriteByBusiness(r.Context(), userID, businessID); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *FavoriteHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrFavoriteNotFound), errors.Is(err, ErrBusinessNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyFavorited):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Favorite request failed", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
