package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"github.com/gorilla/mux"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the authenticated identity, or nil.
func IdentityFrom(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey{}).(*models.Identity)
	return identity
}

// ErrorWriter renders an error response. The HTTP layer supplies it so that
// guards and handlers share one envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type AccessVerifier interface {
	Verify(kind models.TokenKind, token string) (*Claims, error)
}

// Guard builds the per-route authentication and authorization middleware.
type Guard struct {
	tokens   AccessVerifier
	writeErr ErrorWriter
}

func NewGuard(tokens AccessVerifier, writeErr ErrorWriter) *Guard {
	return &Guard{tokens: tokens, writeErr: writeErr}
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("%w: authorization header missing", pkgerrors.ErrUnauthorized)
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: invalid authorization header", pkgerrors.ErrUnauthorized)
	}
	return parts[1], nil
}

func (g *Guard) identify(r *http.Request) (*models.Identity, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := g.tokens.Verify(models.AccessToken, raw)
	if err != nil {
		return nil, err
	}
	return claims.Identity()
}

// Authenticate rejects the request with 401 unless it carries a valid access
// token, and stores the identity in the request context.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.identify(r)
		if err != nil {
			slog.Warn("authentication failed", "path", r.URL.Path, "error", err)
			g.writeErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// OptionalAuthenticate attaches an identity when a valid bearer token is
// present and otherwise passes the request through anonymously.
func (g *Guard) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := g.identify(r)
		if err != nil {
			g.writeErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRoles must run after Authenticate.
func (g *Guard) RequireRoles(req RoleRequirement) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFrom(r.Context())
			if err := Authorize(req, identity); err != nil {
				logDenied(r, identity, err)
				g.writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SelfOrAdmin compares the identity with the user id in path variable param.
// Must run after Authenticate.
func (g *Guard) SelfOrAdmin(param string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			targetID, err := PathUserID(r, param)
			if err != nil {
				g.writeErr(w, r, err)
				return
			}
			identity := IdentityFrom(r.Context())
			if err := CanAccessUser(identity, targetID); err != nil {
				logDenied(r, identity, err)
				g.writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PathUserID parses a positive integer id from a mux path variable.
func PathUserID(r *http.Request, param string) (int64, error) {
	raw := mux.Vars(r)[param]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", pkgerrors.ErrValidation, param)
	}
	return id, nil
}

func logDenied(r *http.Request, identity *models.Identity, err error) {
	if errors.Is(err, pkgerrors.ErrUnauthorized) || identity == nil {
		slog.Warn("access denied", "path", r.URL.Path, "error", err)
		return
	}
	slog.Warn("access denied", "path", r.URL.Path, "user_id", identity.UserID, "role", identity.Role, "error", err)
}
