package routes

import (
	"github.com/dukerupert/idunn/internal/router"
)

// RegisterWebhookRoutes registers incoming webhook routes.
//
// Webhook routes carry no session middleware; the handler verifies the
// provider signature instead.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler)
}
