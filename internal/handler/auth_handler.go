package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"users-service/internal/models"
	"users-service/internal/service"
)

// HealthChecker reports the state of every backing client by name. A nil
// error means healthy.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

// Handler serves the /api/v1 surface on top of the services.
type Handler struct {
	sessions     *service.SessionService
	verification *service.VerificationService
	users        *service.UserService
	health       HealthChecker
	logger       *zap.Logger
}

func NewHandler(services *service.ServiceFactory, health HealthChecker, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:     services.SessionService(),
		verification: services.VerificationService(),
		users:        services.UserService(),
		health:       health,
		logger:       logger,
	}
}

type sendCodeRequest struct {
	Identifier      string `json:"identifier"`
	CheckUserExists bool   `json:"check_user_exists"`
}

func (h *Handler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	if err := h.verification.SendVerificationCode(r.Context(), req.Identifier, req.CheckUserExists); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Verification code sent"))
}

type verifyCodeRequest struct {
	Identifier string           `json:"identifier"`
	Code       string           `json:"code"`
	Operation  models.Operation `json:"operation"`
}

func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	session, err := h.verification.VerifyCodeAndIssueSession(r.Context(), req.Identifier, req.Code, req.Operation)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(session, "Code verified"))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	pair, err := h.sessions.Login(r.Context(), creds)
	if errors.Is(err, service.ErrUserNotFound) {
		h.respondWithAPIError(w, r, incorrectLogin, err, true)
		return
	}
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(pair, "Logged in"))
}

type authenticateRequest struct {
	Session string `json:"session"`
	models.Registration
}

func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	pair, err := h.sessions.Authenticate(r.Context(), req.Session, req.Registration)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, successResponse(pair, "User registered"))
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	pair, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(pair, "Token refreshed"))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	if err := h.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Logged out"))
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.LogoutAll(r.Context(), bearerToken(r)); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "All sessions closed"))
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	if req.Token == "" {
		req.Token = bearerToken(r)
	}
	valid := h.sessions.ValidateToken(r.Context(), req.Token)
	h.respondWithJSON(w, http.StatusOK, successResponse(map[string]bool{"valid": valid}, ""))
}

type resetPasswordRequest struct {
	Identifier string `json:"identifier"`
	Session    string `json:"session"`
	Password   string `json:"password"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	pair, err := h.sessions.ResetPassword(r.Context(), req.Identifier, req.Session, req.Password)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(pair, "Password reset"))
}
