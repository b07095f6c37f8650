package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/domain"
)

// StoreService provides business logic for affiliate store operations.
// Creation runs through the plan-limit gate.
type StoreService interface {
	// CreateStore creates a store for the user after the limit gate admits
	// the prospective count. Denials surface as EFORBIDDEN.
	CreateStore(ctx context.Context, params CreateStoreParams) (*domain.Store, error)

	// GetStore returns a store owned by the user.
	GetStore(ctx context.Context, userID, storeID uuid.UUID) (*domain.Store, error)

	// ListStores returns all stores owned by the user.
	ListStores(ctx context.Context, userID uuid.UUID) ([]domain.Store, error)

	// UpdateStore updates name and description of an owned store.
	UpdateStore(ctx context.Context, params UpdateStoreParams) (*domain.Store, error)

	// DeleteStore removes an owned store.
	DeleteStore(ctx context.Context, userID, storeID uuid.UUID) error
}

// CreateStoreParams contains parameters for creating a store.
type CreateStoreParams struct {
	UserID      uuid.UUID
	Name        string
	Description string
}

// UpdateStoreParams contains parameters for updating a store.
type UpdateStoreParams struct {
	UserID      uuid.UUID
	StoreID     uuid.UUID
	Name        string
	Description string
}

type storeService struct {
	stores domain.StoreRepository
	gate   LimitGate
	logger *slog.Logger
}

// NewStoreService creates a new StoreService instance.
func NewStoreService(stores domain.StoreRepository, gate LimitGate, logger *slog.Logger) StoreService {
	if logger == nil {
		logger = slog.Default()
	}
	return &storeService{
		stores: stores,
		gate:   gate,
		logger: logger,
	}
}

// CreateStore counts existing stores, asks the gate about count+1, and
// inserts on admit. Count-then-check is best-effort under concurrency.
func (s *storeService) CreateStore(ctx context.Context, params CreateStoreParams) (*domain.Store, error) {
	const op = "store.create"

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, domain.NewValidationError(op, "name", "name is required")
	}

	count, err := s.stores.CountByUser(ctx, params.UserID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count stores")
	}

	allowed, err := s.gate.Allow(ctx, params.UserID, domain.FeatureStores, int(count)+1)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.Forbidden(op, "Store limit reached. Upgrade your plan to create more stores.")
	}

	store, err := s.stores.Create(ctx, domain.Store{
		UserID:      params.UserID,
		Name:        name,
		Slug:        Slugify(name),
		Description: strings.TrimSpace(params.Description),
	})
	if err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			return nil, domain.ErrStoreSlugExists
		}
		return nil, domain.Internal(err, op, "failed to create store")
	}

	s.logger.Info("store created",
		"store_id", store.ID,
		"user_id", params.UserID,
		"slug", store.Slug,
	)
	return store, nil
}

// GetStore returns a store owned by the user.
// A store owned by someone else reads as not found.
func (s *storeService) GetStore(ctx context.Context, userID, storeID uuid.UUID) (*domain.Store, error) {
	const op = "store.get"

	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrStoreNotFound
		}
		return nil, domain.Internal(err, op, "failed to load store")
	}
	if store.UserID != userID {
		return nil, domain.ErrStoreNotFound
	}
	return store, nil
}

// ListStores returns all stores owned by the user.
func (s *storeService) ListStores(ctx context.Context, userID uuid.UUID) ([]domain.Store, error) {
	const op = "store.list"

	stores, err := s.stores.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list stores")
	}
	return stores, nil
}

// UpdateStore updates name and description of an owned store.
// The slug is fixed at creation; renames do not break published links.
func (s *storeService) UpdateStore(ctx context.Context, params UpdateStoreParams) (*domain.Store, error) {
	const op = "store.update"

	store, err := s.GetStore(ctx, params.UserID, params.StoreID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(params.Name); name != "" {
		store.Name = name
	}
	store.Description = strings.TrimSpace(params.Description)

	updated, err := s.stores.Update(ctx, *store)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update store")
	}
	return updated, nil
}

// DeleteStore removes an owned store.
func (s *storeService) DeleteStore(ctx context.Context, userID, storeID uuid.UUID) error {
	const op = "store.delete"

	if _, err := s.GetStore(ctx, userID, storeID); err != nil {
		return err
	}

	if err := s.stores.Delete(ctx, storeID); err != nil {
		return domain.Internal(err, op, "failed to delete store")
	}

	s.logger.Info("store deleted", "store_id", storeID, "user_id", userID)
	return nil
}

// Slugify turns a display name into a URL-safe slug.
func Slugify(s string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		case !prevDash:
			b.WriteByte('-')
			prevDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
