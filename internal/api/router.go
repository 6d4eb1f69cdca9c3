package api

import (
	"net/http"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/handler"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/auth"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/observability"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	"github.com/gorilla/mux"
)

func chain(h http.HandlerFunc, middlewares ...mux.MiddlewareFunc) http.Handler {
	var out http.Handler = h
	for i := len(middlewares) - 1; i >= 0; i-- {
		out = middlewares[i](out)
	}
	return out
}

// SetupRouter registers every route with its guard chain. Guards listed
// first run first.
func SetupRouter(h *handler.Handler, tokens auth.AccessVerifier) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handler.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handler.MethodNotAllowed)
	r.Use(requestLogger, metricsMiddleware)

	guard := auth.NewGuard(tokens, handler.WriteError)
	adminOnly := guard.RequireRoles(auth.Roles(models.RoleAdmin))
	selfOrAdmin := guard.SelfOrAdmin("id")

	r.HandleFunc("/health/live", h.Live).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", h.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)
	authRoutes.Handle("/logout", chain(h.Logout, guard.Authenticate)).Methods(http.MethodDelete)

	r.Handle("/users", chain(h.CreateUser, guard.OptionalAuthenticate)).Methods(http.MethodPost)
	r.Handle("/users", chain(h.ListUsers, guard.Authenticate, adminOnly)).Methods(http.MethodGet)
	r.Handle("/users/{id}", chain(h.GetUser, guard.Authenticate, selfOrAdmin)).Methods(http.MethodGet)
	r.Handle("/users/{id}", chain(h.UpdateUser, guard.Authenticate, selfOrAdmin)).Methods(http.MethodPatch)
	r.Handle("/users/{id}", chain(h.DeleteUser, guard.Authenticate, selfOrAdmin)).Methods(http.MethodDelete)

	return r
}
