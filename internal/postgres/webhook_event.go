package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/idunn/internal/domain"
)

// WebhookEventStore implements domain.WebhookEventStore using PostgreSQL.
// The (provider, provider_event_id) unique constraint is what makes event
// processing idempotent under concurrent deliveries.
type WebhookEventStore struct {
	pool *pgxpool.Pool
}

var _ domain.WebhookEventStore = (*WebhookEventStore)(nil)

// NewWebhookEventStore creates a new WebhookEventStore instance.
func NewWebhookEventStore(pool *pgxpool.Pool) *WebhookEventStore {
	return &WebhookEventStore{pool: pool}
}

// GetByProviderEventID returns the recorded event for a provider event ID.
func (s *WebhookEventStore) GetByProviderEventID(ctx context.Context, provider, eventID string) (*domain.WebhookEvent, error) {
	query := `
		SELECT id, provider, provider_event_id, event_type, payload, created_at
		FROM webhook_events
		WHERE provider = $1 AND provider_event_id = $2
	`

	var ev domain.WebhookEvent
	err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(
		&ev.ID,
		&ev.Provider,
		&ev.ProviderEventID,
		&ev.EventType,
		&ev.Payload,
		&ev.CreatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrWebhookEventNotFound
		}
		return nil, fmt.Errorf("failed to query webhook event: %w", err)
	}
	return &ev, nil
}

// Create records a processed event. Duplicate provider event IDs return
// ECONFLICT.
func (s *WebhookEventStore) Create(ctx context.Context, ev domain.WebhookEvent) (*domain.WebhookEvent, error) {
	query := `
		INSERT INTO webhook_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, provider, provider_event_id, event_type, payload, created_at
	`

	var saved domain.WebhookEvent
	err := s.pool.QueryRow(ctx, query, ev.Provider, ev.ProviderEventID, ev.EventType, ev.Payload).Scan(
		&saved.ID,
		&saved.Provider,
		&saved.ProviderEventID,
		&saved.EventType,
		&saved.Payload,
		&saved.CreatedAt,
	)
	if err != nil {
		if uniqueViolation(err) {
			return nil, domain.Conflict("webhook_event.create", "event already recorded")
		}
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return &saved, nil
}
