package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SUBSCRIPTION DOMAIN TYPES
// =============================================================================

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Valid returns true if the status is one of the known lifecycle states.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled:
		return true
	}
	return false
}

// Subscription is the durable record of a user's plan, status, and billing
// period. Every user has exactly one active row; paid rows carry the
// provider's subscription ID, free-plan rows leave it empty.
type Subscription struct {
	ID     uuid.UUID
	UserID uuid.UUID
	PlanID uuid.UUID
	Status SubscriptionStatus

	// ProviderSubscriptionID is the Stripe subscription ID (sub_...).
	// Empty for free-plan rows that have no billing counterpart.
	ProviderSubscriptionID string

	// ProviderCustomerID is the Stripe customer ID (cus_...).
	ProviderCustomerID string

	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time

	// CancelAtPeriodEnd signals a pending cancellation that takes effect
	// when the current period ends.
	CancelAtPeriodEnd bool

	// CanceledAt is set exactly once, when status first becomes canceled.
	// Immutable thereafter.
	CanceledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPaid returns true if the subscription is backed by a billing provider.
func (s *Subscription) IsPaid() bool {
	return s.ProviderSubscriptionID != ""
}

// IsCanceled returns true once the subscription has been terminally canceled.
func (s *Subscription) IsCanceled() bool {
	return s.Status == SubscriptionStatusCanceled
}

// =============================================================================
// PLAN DOMAIN TYPES
// =============================================================================

// Known plan codes.
const (
	PlanCodeFree     = "free"
	PlanCodePro      = "pro"
	PlanCodeBusiness = "business"
)

// Feature codes used as keys in plan limits.
const (
	FeatureStores = "stores"
)

// PlanLimits maps feature codes to usage ceilings. A feature absent from the
// map carries no limit (open by default).
type PlanLimits map[string]int

// Limit returns the ceiling for a feature code.
// The second return value is false when the feature is unlimited.
func (l PlanLimits) Limit(feature string) (int, bool) {
	limit, ok := l[feature]
	return limit, ok
}

// Plan describes a subscription tier and its feature limits.
type Plan struct {
	ID   uuid.UUID
	Code string
	Name string

	// PriceCents is the monthly price. Zero for the free plan.
	PriceCents int32

	// StripePriceID is the billing provider's price identifier.
	// Empty for the free plan, which is never billed.
	StripePriceID string

	Limits PlanLimits

	CreatedAt time.Time
}

// IsFree returns true for the unbilled free tier.
func (p *Plan) IsFree() bool {
	return p.Code == PlanCodeFree
}

// SubscriptionWithPlan joins a subscription row with its plan for display.
type SubscriptionWithPlan struct {
	Subscription Subscription
	Plan         Plan
}

// =============================================================================
// STORE CONTRACTS
// =============================================================================

// SubscriptionStatusUpdate carries the fields UpdateStatus may change.
// Nil pointer fields are left untouched.
type SubscriptionStatusUpdate struct {
	Status            SubscriptionStatus
	CancelAtPeriodEnd *bool
	CanceledAt        *time.Time
}

// SubscriptionStore is the durable record store for subscriptions.
type SubscriptionStore interface {
	// FindActiveByUser returns the user's single active subscription.
	// Returns ErrSubscriptionNotFound if the user has none.
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// FindByProviderID resolves a subscription by its Stripe subscription ID.
	FindByProviderID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)

	// Upsert inserts or updates a subscription keyed by
	// provider_subscription_id, so replayed events converge.
	Upsert(ctx context.Context, sub Subscription) (*Subscription, error)

	// UpdateStatus updates status fields on the row identified by the
	// provider subscription ID. canceled_at is only written if currently null.
	UpdateStatus(ctx context.Context, providerSubscriptionID string, update SubscriptionStatusUpdate) error

	// Create inserts a new subscription row (used for free-plan rows,
	// which have no provider ID to upsert on).
	Create(ctx context.Context, sub Subscription) (*Subscription, error)

	// RetireActiveForUser cancels every active row for the user except the
	// one with the given provider subscription ID. Used when a paid
	// subscription supersedes the free row.
	RetireActiveForUser(ctx context.Context, userID uuid.UUID, exceptProviderID string) error
}

// PlanStore provides read access to the plan catalog.
type PlanStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	GetByCode(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
}

// =============================================================================
// DOMAIN ERRORS
// =============================================================================

var (
	ErrSubscriptionNotFound = &Error{Code: ENOTFOUND, Message: "Subscription not found"}
	ErrPlanNotFound         = &Error{Code: ENOTFOUND, Message: "Plan not found"}
	ErrNoActiveSubscription = &Error{Code: ENOTFOUND, Message: "No active subscription"}
)
