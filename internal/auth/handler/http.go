// Package handler exposes the credential lifecycle over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"docshare/internal/auth/service"
	"docshare/internal/httpx"
	"docshare/internal/server/middleware"
	"docshare/internal/user/domain"
)

// Handler serves the /api/auth routes.
type Handler struct {
	auth *service.AuthService
}

// New returns an auth Handler.
func New(auth *service.AuthService) *Handler {
	return &Handler{auth: auth}
}

// Routes mounts the public auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/verify-otp", h.verifyOTP)
	r.Post("/resend-otp", h.resendOTP)
	r.Post("/login", h.login)
}

// ProtectedRoutes mounts the endpoints requiring a session token.
func (h *Handler) ProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.logout)
	r.Get("/me", h.me)
	r.Put("/profile", h.updateProfile)
	r.Post("/profile/picture", h.uploadProfilePicture)
}

type addressPayload struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

func (a addressPayload) toDomain() domain.Address {
	return domain.Address{Street: a.Street, City: a.City, State: a.State, Pincode: a.Pincode}
}

type userView struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	Address        addressPayload `json:"address"`
	Verified       bool           `json:"verified"`
	Role           string         `json:"role"`
	ProfilePicture string         `json:"profile_picture,omitempty"`
	DocumentsCount int            `json:"documents_count"`
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func toUserView(u *domain.User) userView {
	return userView{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
		Address: addressPayload{
			Street: u.Address.Street, City: u.Address.City,
			State: u.Address.State, Pincode: u.Address.Pincode,
		},
		Verified:       u.Verified,
		Role:           string(u.Role),
		ProfilePicture: u.ProfilePictureKey,
		DocumentsCount: u.DocumentsCount,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string         `json:"name"`
		Email      string         `json:"email"`
		Password   string         `json:"password"`
		NationalID string         `json:"national_id"`
		Phone      string         `json:"phone"`
		Address    addressPayload `json:"address"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	user, devOTP, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		NationalID: req.NationalID,
		Phone:      req.Phone,
		Address:    req.Address.toDomain(),
	})
	if err != nil {
		writeAuthError(w, err)
		return
	}
	resp := map[string]any{
		"user":    toUserView(user),
		"message": "verification code sent",
	}
	if devOTP != "" {
		resp["dev_otp"] = devOTP
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		OTP    string `json:"otp"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	user, token, expiresAt, err := h.auth.VerifyOTP(r.Context(), req.UserID, req.OTP)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":       toUserView(user),
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (h *Handler) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	devOTP, err := h.auth.ResendOTP(r.Context(), req.UserID)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	resp := map[string]any{"message": "verification code sent"}
	if devOTP != "" {
		resp["dev_otp"] = devOTP
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	user, token, expiresAt, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var unverified *service.UnverifiedAccountError
		if errors.As(err, &unverified) {
			// The user id lets clients offer an OTP resend.
			httpx.JSON(w, http.StatusBadRequest, map[string]any{
				"error":   "account is not verified",
				"user_id": unverified.UserID,
			})
			return
		}
		writeAuthError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":       toUserView(user),
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	if err := h.auth.Logout(r.Context(), userID); err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserView(user)})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	var req struct {
		Name    string         `json:"name"`
		Phone   string         `json:"phone"`
		Address addressPayload `json:"address"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.auth.UpdateProfile(r.Context(), userID, req.Name, req.Phone, req.Address.toDomain())
	if err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserView(user)})
}

func (h *Handler) uploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)
	if err := r.ParseMultipartForm(2 << 20); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	user, err := h.auth.UploadProfilePicture(r.Context(), userID, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserView(user)})
}

// writeAuthError maps service errors to status codes. Deterministic outcomes
// are 4xx; anything else is a store failure.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateCredential),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrOTPInvalidOrExpired),
		errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrInvalidInput):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
