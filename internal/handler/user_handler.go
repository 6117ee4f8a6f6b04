package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"users-service/internal/models"
	"users-service/internal/service"
)

func (h *Handler) respondWithUser(w http.ResponseWriter, r *http.Request, user models.User, err error) {
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(user, ""))
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByToken(r.Context(), bearerToken(r))
	h.respondWithUser(w, r, user, err)
}

func (h *Handler) GetRefreshOwner(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	user, err := h.users.GetUserByRefreshToken(r.Context(), req.RefreshToken)
	h.respondWithUser(w, r, user, err)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var update models.ProfileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	user, err := h.users.UpdateUser(r.Context(), bearerToken(r), update)
	h.respondWithUser(w, r, user, err)
}

type updateAvatarRequest struct {
	Avatar *models.UploadingFile `json:"avatar"`
}

func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	var req updateAvatarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "avatar", err)
		return
	}
	user, err := h.users.UpdateAvatar(r.Context(), bearerToken(r), req.Avatar)
	h.respondWithUser(w, r, user, err)
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	user, err := h.users.UpdatePassword(r.Context(), bearerToken(r), req.OldPassword, req.NewPassword)
	h.respondWithUser(w, r, user, err)
}

type updateContactRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Session string `json:"session"`
}

func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	user, err := h.users.UpdateEmail(r.Context(), bearerToken(r), req.Session, req.Email)
	h.respondWithUser(w, r, user, err)
}

func (h *Handler) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	var req updateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "", err)
		return
	}
	user, err := h.users.UpdatePhone(r.Context(), bearerToken(r), req.Session, req.Phone)
	h.respondWithUser(w, r, user, err)
}

// queryInt parses an optional integer query parameter. Absent parameters
// yield zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		h.badRequest(w, r, "page", errMalformedParam)
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		h.badRequest(w, r, "per_page", errMalformedParam)
		return
	}

	result, err := h.users.SearchUsers(r.Context(), bearerToken(r), r.URL.Query().Get("q"), page, perPage)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	response := successResponse(result.Data, "")
	response.Meta = &Meta{
		Page:       result.Page,
		PerPage:    result.PerPage,
		PagesCount: result.PagesCount,
		Total:      result.Total,
	}
	h.respondWithJSON(w, http.StatusOK, response)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lookup := service.UserLookup{
		Username: query.Get("username"),
		Email:    query.Get("email"),
		Phone:    query.Get("phone"),
	}
	if raw := query.Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badRequest(w, r, "id", errMalformedParam)
			return
		}
		lookup.ID = id
	}
	user, err := h.users.GetUser(r.Context(), bearerToken(r), lookup)
	h.respondWithUser(w, r, user, err)
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		h.badRequest(w, r, "id", errMalformedParam)
		return
	}
	user, err := h.users.GetUser(r.Context(), bearerToken(r), service.UserLookup{ID: id})
	h.respondWithUser(w, r, user, err)
}

type batchRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) GetUsersBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "ids", err)
		return
	}
	users, err := h.users.GetUsersByIDs(r.Context(), bearerToken(r), req.IDs)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(users, ""))
}

type confirmFieldRequest struct {
	Session string `json:"session"`
}

func (h *Handler) ConfirmField(w http.ResponseWriter, r *http.Request) {
	var req confirmFieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "session", err)
		return
	}
	user, err := h.users.ConfirmField(r.Context(), bearerToken(r), chi.URLParam(r, "field"), req.Session)
	h.respondWithUser(w, r, user, err)
}
