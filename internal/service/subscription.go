package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/domain"
)

// SubscriptionService provides business logic for subscription operations:
// the webhook reconciler plus the user-facing checkout and cancellation flows.
type SubscriptionService interface {
	// ProcessEvent applies a classified webhook event to the subscription
	// record.
	//
	// Idempotent two ways: a replayed provider event ID short-circuits via
	// the webhook_events record, and replayed logical content converges
	// because all writes are keyed upserts.
	//
	// A returned error means processing failed and the delivery should be
	// answered non-2xx so the provider redelivers.
	ProcessEvent(ctx context.Context, params ProcessEventParams) error

	// GetCurrent returns the user's active subscription joined with its plan.
	GetCurrent(ctx context.Context, userID uuid.UUID) (*domain.SubscriptionWithPlan, error)

	// Checkout starts a hosted checkout session for a paid plan.
	//
	// Flow:
	//  1. Resolve the plan; the free plan is not purchasable
	//  2. Reuse the user's provider customer, creating one on first checkout
	//  3. Create the checkout session with user_id/plan_code metadata
	//
	// The subscription record itself is created later, by the
	// checkout.session.completed webhook.
	Checkout(ctx context.Context, params CheckoutParams) (*CheckoutResult, error)

	// UpdateCancellation flips cancel_at_period_end at the provider and
	// locally. A local write failure after the provider call succeeded is
	// surfaced, not rolled back; the next subscription.updated webhook
	// converges the record.
	UpdateCancellation(ctx context.Context, userID uuid.UUID, cancel bool) (*domain.Subscription, error)

	// CreatePortalSession creates a billing portal session for the user.
	CreatePortalSession(ctx context.Context, userID uuid.UUID, returnURL string) (string, error)

	// CreateFreeSubscription inserts an active free-plan row for the user.
	// Called at signup and after terminal cancellation; a user is never
	// left without an active subscription.
	CreateFreeSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
}

// ProcessEventParams contains a verified, classified webhook event.
type ProcessEventParams struct {
	// EventID is the provider event ID (evt_...) for idempotency.
	EventID string

	// EventType is the raw provider event type, recorded for audit.
	EventType string

	// Payload is the raw event body, recorded alongside the event ID.
	Payload []byte

	// Event is the classified variant.
	Event Event
}

// CheckoutParams contains parameters for starting a checkout session.
type CheckoutParams struct {
	UserID     uuid.UUID
	PlanID     uuid.UUID
	SuccessURL string
	CancelURL  string
}

// CheckoutResult contains the hosted checkout session handle.
type CheckoutResult struct {
	SessionID string
	URL       string
}
