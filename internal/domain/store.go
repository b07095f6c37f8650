package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is an affiliate storefront owned by a user. Store creation is the
// plan-limited resource: the limit gate runs before every insert.
type Store struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Slug        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StoreRepository is the persistence contract for affiliate stores.
type StoreRepository interface {
	Create(ctx context.Context, store Store) (*Store, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Store, error)
	GetBySlug(ctx context.Context, slug string) (*Store, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Store, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Update(ctx context.Context, store Store) (*Store, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Store-specific errors.
var (
	ErrStoreNotFound   = &Error{Code: ENOTFOUND, Message: "Store not found"}
	ErrStoreSlugExists = &Error{Code: ECONFLICT, Message: "A store with this slug already exists"}
)
