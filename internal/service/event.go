package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/domain"
)

// Event is a classified billing lifecycle event. Each variant carries only
// the fields its transition needs; the webhook handler parses raw provider
// payloads into these before anything touches the database.
type Event interface {
	// Kind returns a stable name for logging and metrics.
	Kind() string
}

// CheckoutCompleted is emitted when a hosted checkout finishes and a paid
// subscription exists at the provider. Period bounds are filled in from the
// provider's view of the subscription before the transition is applied.
type CheckoutCompleted struct {
	UserID         uuid.UUID
	PlanCode       string
	CustomerID     string
	SubscriptionID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

func (CheckoutCompleted) Kind() string { return "checkout_completed" }

// SubscriptionUpdated mirrors the provider's current view of a subscription:
// status, pending cancellation, and refreshed period bounds.
type SubscriptionUpdated struct {
	SubscriptionID    string
	Status            domain.SubscriptionStatus
	CancelAtPeriodEnd bool
	CanceledAt        *time.Time
	PeriodStart       time.Time
	PeriodEnd         time.Time

	// PlanCode is set when the subscription's price maps to a known plan.
	// Empty means the plan is unchanged.
	PlanCode string
}

func (SubscriptionUpdated) Kind() string { return "subscription_updated" }

// SubscriptionDeleted is the terminal cancellation of a paid subscription.
type SubscriptionDeleted struct {
	SubscriptionID string
	UserID         uuid.UUID
}

func (SubscriptionDeleted) Kind() string { return "subscription_deleted" }

// InvoicePaymentFailed marks a billing failure on a subscription's invoice.
type InvoicePaymentFailed struct {
	SubscriptionID string
}

func (InvoicePaymentFailed) Kind() string { return "invoice_payment_failed" }
