package routes

import (
	"github.com/dukerupert/idunn/internal/middleware"
	"github.com/dukerupert/idunn/internal/router"
)

// RegisterAPIRoutes registers the JSON API. Authenticated routes share a
// sub-router guarded by RequireAuth; unmatched methods on a registered path
// answer 405 via the ServeMux method patterns. credentialLimit is applied to
// the signup and login routes only.
func RegisterAPIRoutes(r *router.Router, deps APIDeps, credentialLimit ...router.Middleware) {
	// Public
	r.Post("/api/signup", deps.Auth.Signup, credentialLimit...)
	r.Post("/api/login", deps.Auth.Login, credentialLimit...)
	r.Post("/api/logout", deps.Auth.Logout)
	r.Get("/api/plans", deps.Subscriptions.ListPlans)

	authed := r.Group(middleware.RequireAuth)

	authed.Get("/api/me", deps.Auth.Me)

	// Subscription
	authed.Get("/api/subscription", deps.Subscriptions.GetCurrent)
	authed.Post("/api/subscription", deps.Subscriptions.Checkout)
	authed.Put("/api/subscription", deps.Subscriptions.Update)
	authed.Post("/api/subscription/portal", deps.Subscriptions.Portal)

	// Stores
	authed.Post("/api/stores", deps.Stores.Create)
	authed.Get("/api/stores", deps.Stores.List)
	authed.Get("/api/stores/{id}", deps.Stores.Get)
	authed.Put("/api/stores/{id}", deps.Stores.Update)
	authed.Delete("/api/stores/{id}", deps.Stores.Delete)

	// Notifications
	authed.Get("/api/notifications", deps.Notifications.List)
	authed.Post("/api/notifications/{id}/read", deps.Notifications.MarkRead)
}
