package user

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
	"golang.org/x/crypto/bcrypt"
)

// WelcomeMailer sends the one-time welcome email.
type WelcomeMailer interface {
	SendWelcome(u *models.User) error
}

type Handler struct {
	store    Store
	auth     *utils.Auth
	mailer   WelcomeMailer
	logger   *zap.Logger
	validate *validator.Validate
}

func NewHandler(store Store, auth *utils.Auth, mailer WelcomeMailer, logger *zap.Logger) *Handler {
	return &Handler{store: store, auth: auth, mailer: mailer, logger: logger, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/auth/login", h.HandleLogin).Methods("POST")
	router.HandleFunc("/auth/me", h.auth.Middleware(h.GetMe)).Methods("GET")
	router.HandleFunc("/auth/me", h.auth.Middleware(h.UpdateMe)).Methods("PUT")
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=255"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	FullName       *string   `json:"full_name" validate:"omitempty,min=1,max=255"`
	Age            *int      `json:"age" validate:"omitempty,min=0,max=150"`
	HoursAvailable *int      `json:"hours_available" validate:"omitempty,min=0,max=744"`
	Bio            *string   `json:"bio" validate:"omitempty,max=2000"`
	Skills         *[]string `json:"skills"`
	Picture        *string   `json:"picture" validate:"omitempty,max=500"`
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid JSON input")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, "Error hashing password", err)
		return
	}

	user := &models.User{
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(passwordHash),
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			h.logger.Info("Registration attempt with duplicate email", zap.String("email", req.Email))
			utils.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.internalError(w, "Error registering user", err)
		return
	}

	h.respondWithToken(w, http.StatusCreated, user)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, ErrUserNotFound) {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.internalError(w, "Error logging in", err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.respondWithToken(w, http.StatusOK, user)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.auth.GenerateToken(user.ID)
	if err != nil {
		h.internalError(w, "Error generating access token", err)
		return
	}
	utils.WriteJSON(w, status, authResponse{AccessToken: token, User: user})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	user, err := h.store.GetUser(r.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "Error fetching user", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// UpdateMe edits the volunteer profile. The first time the profile becomes
// complete a welcome email goes out.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "Error fetching user", err)
		return
	}

	wasComplete := user.ProfileComplete()
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Age != nil {
		user.Age = req.Age
	}
	if req.HoursAvailable != nil {
		user.HoursAvailable = *req.HoursAvailable
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Skills != nil {
		user.Skills = *req.Skills
	}
	if req.Picture != nil {
		user.Picture = *req.Picture
	}

	if err := h.store.SaveUser(r.Context(), user); err != nil {
		h.internalError(w, "Error updating user", err)
		return
	}

	if !wasComplete && user.ProfileComplete() && h.mailer != nil {
		welcome := *user
		go func() {
			if err := h.mailer.SendWelcome(&welcome); err != nil {
				h.logger.Warn("Error sending welcome email", zap.Uint("user_id", welcome.ID), zap.Error(err))
			}
		}()
	}

	utils.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) internalError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	utils.WriteError(w, http.StatusInternalServerError, message)
}
