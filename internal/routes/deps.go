package routes

import (
	"net/http"

	"github.com/dukerupert/idunn/internal/handler/api"
)

// APIDeps contains handlers for the JSON API.
type APIDeps struct {
	Auth          *api.AuthHandler
	Subscriptions *api.SubscriptionHandler
	Stores        *api.StoreHandler
	Notifications *api.NotificationHandler
}

// WebhookDeps contains handlers for webhook routes.
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}
