package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/auth"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/observability"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Message    string `json:"message"`
}

// StatusFor maps an error to its HTTP status and public message. Internal
// errors never leak their text.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Wrong login / password."
	case errors.Is(err, pkgerrors.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "Invalid refresh token."
	case errors.Is(err, pkgerrors.ErrTokenExpired):
		return http.StatusUnauthorized, "Token has expired."
	case errors.Is(err, pkgerrors.ErrTokenInvalid), errors.Is(err, pkgerrors.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, pkgerrors.ErrRoleEscalation):
		return http.StatusForbidden, "Only admins can set userType to ADMIN."
	case errors.Is(err, pkgerrors.ErrNotOwner):
		return http.StatusForbidden, "You do not have permission to access this resource."
	case errors.Is(err, pkgerrors.ErrForbidden):
		return http.StatusForbidden, "Forbidden resource"
	case errors.Is(err, pkgerrors.ErrUserNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, pkgerrors.ErrUsernameExists):
		return http.StatusConflict, "Username already exists."
	case errors.Is(err, pkgerrors.ErrValidation), errors.Is(err, pkgerrors.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       r.URL.RequestURI(),
		Message:    message,
	})
}

// WriteError renders err in the error envelope and logs it. It matches
// auth.ErrorWriter so the guards share it.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := StatusFor(err)

	user := "unauth"
	if identity := auth.IdentityFrom(r.Context()); identity != nil {
		user = identity.Username
	}
	logger := observability.Logger(r.Context())
	attrs := []any{"method", r.Method, "path", r.URL.Path, "status", status, "user", user, "error", err}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	writeStatus(w, r, status, message)
}

// NotFound and MethodNotAllowed keep unmatched routes in the same envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, r, http.StatusNotFound, "Cannot "+r.Method+" "+r.URL.Path)
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, r, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed on "+r.URL.Path)
}
