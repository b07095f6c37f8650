package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies user-facing notifications.
type NotificationKind string

const (
	// NotificationPaymentFailed is recorded when an invoice payment fails
	// and the subscription drops to past_due.
	NotificationPaymentFailed NotificationKind = "payment_failed"
)

// Notification is a persisted message for a user, surfaced in the dashboard.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      NotificationKind
	Message   string
	Read      bool
	CreatedAt time.Time
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	Create(ctx context.Context, n Notification) (*Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int32) ([]Notification, error)
	// MarkRead flags a notification as read. Scoped to the owner so one
	// user cannot touch another's feed.
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}
