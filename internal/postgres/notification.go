package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/idunn/internal/domain"
)

// NotificationStore implements domain.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *pgxpool.Pool
}

var _ domain.NotificationStore = (*NotificationStore)(nil)

// NewNotificationStore creates a new NotificationStore instance.
func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Create inserts a notification.
func (s *NotificationStore) Create(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, kind, message)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, kind, message, read, created_at
	`

	var saved domain.Notification
	err := s.pool.QueryRow(ctx, query, n.UserID, n.Kind, n.Message).Scan(
		&saved.ID,
		&saved.UserID,
		&saved.Kind,
		&saved.Message,
		&saved.Read,
		&saved.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &saved, nil
}

// ListByUser returns the user's notifications, newest first.
func (s *NotificationStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int32) ([]domain.Notification, error) {
	query := `
		SELECT id, user_id, kind, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags a notification as read. A notification owned by another
// user reads as not found.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("notification.mark_read", "notification", id.String())
	}
	return nil
}
