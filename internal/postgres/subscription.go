package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/idunn/internal/domain"
)

// SubscriptionStore implements domain.SubscriptionStore using PostgreSQL.
type SubscriptionStore struct {
	pool *pgxpool.Pool
}

var _ domain.SubscriptionStore = (*SubscriptionStore)(nil)

// NewSubscriptionStore creates a new SubscriptionStore instance.
func NewSubscriptionStore(pool *pgxpool.Pool) *SubscriptionStore {
	return &SubscriptionStore{pool: pool}
}

const subscriptionColumns = `
	id, user_id, plan_id, status,
	COALESCE(provider_subscription_id, ''), COALESCE(provider_customer_id, ''),
	current_period_start, current_period_end,
	cancel_at_period_end, canceled_at, created_at, updated_at
`

func scanSubscription(row interface{ Scan(dest ...any) error }) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&sub.Status,
		&sub.ProviderSubscriptionID,
		&sub.ProviderCustomerID,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.CanceledAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindActiveByUser returns the user's single active subscription.
func (s *SubscriptionStore) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
	`

	sub, err := scanSubscription(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to query active subscription: %w", err)
	}
	return sub, nil
}

// FindByProviderID resolves a subscription by its Stripe subscription ID.
func (s *SubscriptionStore) FindByProviderID(ctx context.Context, providerSubscriptionID string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE provider_subscription_id = $1
	`

	sub, err := scanSubscription(s.pool.QueryRow(ctx, query, providerSubscriptionID))
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to query subscription by provider ID: %w", err)
	}
	return sub, nil
}

// The conflict target must repeat the partial index predicate from
// idx_subscriptions_provider_id, or Postgres cannot use it as the arbiter
// and the insert fails with 42P10.
const upsertSubscriptionQuery = `
	INSERT INTO subscriptions (
		user_id, plan_id, status,
		provider_subscription_id, provider_customer_id,
		current_period_start, current_period_end,
		cancel_at_period_end, canceled_at
	)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	ON CONFLICT (provider_subscription_id) WHERE provider_subscription_id IS NOT NULL DO UPDATE SET
		plan_id              = EXCLUDED.plan_id,
		status               = EXCLUDED.status,
		provider_customer_id = EXCLUDED.provider_customer_id,
		current_period_start = EXCLUDED.current_period_start,
		current_period_end   = EXCLUDED.current_period_end,
		cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		canceled_at          = COALESCE(subscriptions.canceled_at, EXCLUDED.canceled_at),
		updated_at           = now()
	RETURNING ` + subscriptionColumns

// Upsert inserts or updates a subscription keyed by provider_subscription_id,
// so replayed events converge on the same row. canceled_at keeps its first
// value once written.
func (s *SubscriptionStore) Upsert(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	saved, err := scanSubscription(s.pool.QueryRow(ctx, upsertSubscriptionQuery,
		sub.UserID,
		sub.PlanID,
		sub.Status,
		sub.ProviderSubscriptionID,
		sub.ProviderCustomerID,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.CanceledAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return saved, nil
}

// UpdateStatus updates status fields on the row identified by the provider
// subscription ID. canceled_at is only written if currently null.
func (s *SubscriptionStore) UpdateStatus(ctx context.Context, providerSubscriptionID string, update domain.SubscriptionStatusUpdate) error {
	query := `
		UPDATE subscriptions SET
			status               = $2,
			cancel_at_period_end = COALESCE($3, cancel_at_period_end),
			canceled_at          = COALESCE(canceled_at, $4),
			updated_at           = now()
		WHERE provider_subscription_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		providerSubscriptionID,
		update.Status,
		update.CancelAtPeriodEnd,
		update.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// Create inserts a new subscription row. Used for free-plan rows, which have
// no provider ID to upsert on.
func (s *SubscriptionStore) Create(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (
			user_id, plan_id, status,
			provider_subscription_id, provider_customer_id,
			current_period_start, current_period_end,
			cancel_at_period_end, canceled_at
		)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)
		RETURNING ` + subscriptionColumns

	saved, err := scanSubscription(s.pool.QueryRow(ctx, query,
		sub.UserID,
		sub.PlanID,
		sub.Status,
		sub.ProviderSubscriptionID,
		sub.ProviderCustomerID,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.CanceledAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return saved, nil
}

// RetireActiveForUser cancels every active row for the user except the one
// with the given provider subscription ID.
func (s *SubscriptionStore) RetireActiveForUser(ctx context.Context, userID uuid.UUID, exceptProviderID string) error {
	query := `
		UPDATE subscriptions SET
			status      = 'canceled',
			canceled_at = COALESCE(canceled_at, now()),
			updated_at  = now()
		WHERE user_id = $1
		  AND status = 'active'
		  AND COALESCE(provider_subscription_id, '') <> $2
	`

	if _, err := s.pool.Exec(ctx, query, userID, exceptProviderID); err != nil {
		return fmt.Errorf("failed to retire subscriptions: %w", err)
	}
	return nil
}
