package domain

import (
	"context"
	"time"
)

// WebhookEvent records a processed billing-provider event for idempotency.
// Replayed deliveries of the same provider event ID are short-circuited.
type WebhookEvent struct {
	ID              int64
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
	CreatedAt       time.Time
}

// WebhookEventStore persists processed webhook events.
type WebhookEventStore interface {
	// GetByProviderEventID returns the recorded event, or
	// ErrWebhookEventNotFound if this event ID has not been seen.
	GetByProviderEventID(ctx context.Context, provider, eventID string) (*WebhookEvent, error)

	// Create records a processed event. Duplicate provider event IDs
	// return ECONFLICT.
	Create(ctx context.Context, ev WebhookEvent) (*WebhookEvent, error)
}

var ErrWebhookEventNotFound = &Error{Code: ENOTFOUND, Message: "Webhook event not found"}
