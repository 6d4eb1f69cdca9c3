package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/auth"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/observability"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	service "github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/services"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	auth  service.AuthService
	users service.UserService
	ready Pinger
}

func NewHandler(authSvc service.AuthService, userSvc service.UserService, ready Pinger) *Handler {
	return &Handler{auth: authSvc, users: userSvc, ready: ready}
}

type loginRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type refreshRequest struct {
	RefreshToken *string `json:"refreshToken"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	username, err := requiredString("username", req.Username)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	password, err := requiredString("password", req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	token, err := requiredString("refreshToken", req.RefreshToken)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	if identity == nil {
		WriteError(w, r, pkgerrors.ErrUnauthorized)
		return
	}

	result, err := h.auth.Logout(r.Context(), identity.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input models.CreateUserInput
	if err := decodeJSON(w, r, &input); err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.users.Create(r.Context(), auth.IdentityFrom(r.Context()), input)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Response())
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter, err := parseUserFilter(r.URL.Query())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	users, err := h.users.List(r.Context(), filter)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].Response())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := auth.PathUserID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Response())
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := auth.PathUserID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var input models.UpdateUserInput
	if err := decodeJSON(w, r, &input); err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), auth.IdentityFrom(r.Context()), id, input)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Response())
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := auth.PathUserID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	user, err := h.users.Delete(r.Context(), auth.IdentityFrom(r.Context()), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Response())
}

func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready.Ping(ctx); err != nil {
			observability.Logger(r.Context()).Error("readiness check failed", "error", err)
			writeStatus(w, r, http.StatusServiceUnavailable, "Service unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
