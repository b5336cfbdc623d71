// Package api assembles the HTTP surface: router, middleware stack, response
// envelope, and handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/debabrata-png/aipaathsala1-sub000/internal/api/middleware"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	TriggerAnalysisHandler http.HandlerFunc
	AnalysisStatusHandler  http.HandlerFunc

	RoomHistoryHandler http.HandlerFunc
	PostMessageHandler http.HandlerFunc
	RoomSocketHandler  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)
		r.Use(mw.Identity)

		r.Post("/api/v1/classes/{classID}/analysis", orNotImplemented(deps.TriggerAnalysisHandler))
		r.Get("/api/v1/classes/{classID}/analysis", orNotImplemented(deps.AnalysisStatusHandler))

		r.Get("/api/v1/rooms/{courseCode}/events", orNotImplemented(deps.RoomHistoryHandler))
		r.Post("/api/v1/rooms/{courseCode}/messages", orNotImplemented(deps.PostMessageHandler))
		r.Get("/api/v1/ws/rooms/{courseCode}", orNotImplemented(deps.RoomSocketHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
