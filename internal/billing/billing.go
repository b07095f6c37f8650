package billing

import (
	"context"
	"time"
)

// Provider defines the interface for the subscription billing provider.
// Implementations can use Stripe, Paddle, etc.
type Provider interface {
	// CreateCustomer creates a customer record in the billing provider.
	// Called the first time a user starts checkout; the resulting ID is
	// carried on the subscription record.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// CreateCheckoutSession creates a hosted checkout session for a
	// subscription. Metadata must include user_id and plan_code so the
	// completed-checkout webhook can attribute the subscription.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)

	// GetSubscription retrieves the provider's current view of a
	// subscription. Used to refresh period bounds after checkout.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// UpdateCancelAtPeriodEnd flips the pending-cancellation flag on the
	// provider side and returns the updated subscription.
	UpdateCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*Subscription, error)

	// CreateCustomerPortalSession creates a billing portal session.
	// Returns the URL where the customer manages payment methods.
	CreateCustomerPortalSession(ctx context.Context, params PortalSessionParams) (*PortalSession, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	// Must be called before any event payload is trusted.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// CreateCustomerParams contains parameters for creating a customer.
type CreateCustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// Customer represents a billing customer.
type Customer struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// CheckoutSessionParams contains parameters for a hosted checkout session.
type CheckoutSessionParams struct {
	// CustomerID is the provider customer (cus_...) to bill.
	CustomerID string

	// PriceID is the provider price (price_...) for the chosen plan.
	PriceID string

	// SuccessURL and CancelURL are where the hosted page redirects.
	SuccessURL string
	CancelURL  string

	// Metadata is attached to both the session and the resulting
	// subscription (always include user_id and plan_code).
	Metadata map[string]string
}

// CheckoutSession represents a hosted checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}

// PortalSessionParams contains parameters for a customer portal session.
type PortalSessionParams struct {
	CustomerID string
	ReturnURL  string
}

// PortalSession represents a billing portal session.
type PortalSession struct {
	ID        string
	URL       string
	CreatedAt time.Time
}

// Subscription represents the provider's view of a recurring subscription.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string // "active", "past_due", "canceled", "incomplete", etc.
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	Metadata           map[string]string
	CreatedAt          time.Time
}
