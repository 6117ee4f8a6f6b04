package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"users-service/internal/service"
	"users-service/internal/util"
)

const maxBodyBytes = 1 << 20

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Field   string      `json:"field,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta represents pagination metadata
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	PagesCount int `json:"pages_count"`
	Total      int `json:"total"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// apiError is the public face of a service error.
type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	err error
	api apiError
}{
	{service.ErrUserNotFound, apiError{http.StatusNotFound, "user_not_found", "User not found"}},
	{service.ErrUserAlreadyExists, apiError{http.StatusConflict, "user_already_exists", "User with these credentials already exists"}},
	{service.ErrIncorrectCode, apiError{http.StatusBadRequest, "incorrect_code", "Incorrect verification code"}},
	{service.ErrAttemptsExceeded, apiError{http.StatusTooManyRequests, "attempts_exceeded", "Verification attempts expired"}},
	{service.ErrIncorrectAuthSession, apiError{http.StatusBadRequest, "incorrect_session", "Incorrect session"}},
	{service.ErrIncorrectSignature, apiError{http.StatusBadRequest, "incorrect_signature", "Incorrect file signature"}},
	{service.ErrIncorrectToken, apiError{http.StatusUnauthorized, "incorrect_token", "Incorrect token"}},
	{service.ErrTokenRequired, apiError{http.StatusUnauthorized, "token_required", "Token required"}},
	{service.ErrNoSessionsToRefresh, apiError{http.StatusUnauthorized, "no_sessions", "You have no sessions. Try to relogin"}},
	{service.ErrIncorrectPassword, apiError{http.StatusBadRequest, "incorrect_password", "Incorrect password"}},
	{service.ErrInvalidInput, apiError{http.StatusBadRequest, "invalid_input", "Invalid request"}},
	{service.ErrTooManyRequests, apiError{http.StatusTooManyRequests, "too_many_requests", "Too many verification requests"}},
}

var (
	internalError     = apiError{http.StatusInternalServerError, "internal", "Internal server error"}
	incorrectLogin    = apiError{http.StatusUnauthorized, "incorrect_credentials", "Incorrect credentials"}
	errMalformedBody  = errors.New("malformed request body")
	errMalformedParam = errors.New("malformed parameter")
)

func classify(err error) (apiError, bool) {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.api, true
		}
	}
	return internalError, false
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError maps err to its public status and message. Errors that
// are not part of the service contract are logged and reported as a bare
// 500.
func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	api, known := classify(err)
	h.respondWithAPIError(w, r, api, err, known)
}

func (h *Handler) respondWithAPIError(w http.ResponseWriter, r *http.Request, api apiError, err error, known bool) {
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status_code", api.status),
		util.ErrorField(err),
	}
	if known {
		h.logger.Debug("HTTP error response", fields...)
	} else {
		h.logger.Error("Unhandled error", fields...)
	}

	h.respondWithJSON(w, api.status, Response{
		Success: false,
		Error:   api.code,
		Message: api.message,
		Field:   service.FieldOf(err),
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, field string, err error) {
	h.respondWithAPIError(w, r,
		apiError{http.StatusBadRequest, "invalid_input", "Invalid request"},
		&service.FieldError{Field: field, Err: err}, true)
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// bearerToken extracts the token of an "Authorization: Bearer <token>"
// header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
