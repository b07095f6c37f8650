package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/idunn/internal/domain"
)

// StoreRepository implements domain.StoreRepository using PostgreSQL.
type StoreRepository struct {
	pool *pgxpool.Pool
}

var _ domain.StoreRepository = (*StoreRepository)(nil)

// NewStoreRepository creates a new StoreRepository instance.
func NewStoreRepository(pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{pool: pool}
}

const storeColumns = `id, user_id, name, slug, COALESCE(description, ''), created_at, updated_at`

func scanStore(row interface{ Scan(dest ...any) error }) (*domain.Store, error) {
	var store domain.Store
	err := row.Scan(
		&store.ID,
		&store.UserID,
		&store.Name,
		&store.Slug,
		&store.Description,
		&store.CreatedAt,
		&store.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// Create inserts a new store. Duplicate slugs return ErrStoreSlugExists.
func (r *StoreRepository) Create(ctx context.Context, store domain.Store) (*domain.Store, error) {
	query := `
		INSERT INTO stores (user_id, name, slug, description)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING ` + storeColumns

	saved, err := scanStore(r.pool.QueryRow(ctx, query,
		store.UserID,
		store.Name,
		store.Slug,
		store.Description,
	))
	if err != nil {
		if uniqueViolation(err) {
			return nil, domain.ErrStoreSlugExists
		}
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return saved, nil
}

// GetByID retrieves a store by ID.
func (r *StoreRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`

	store, err := scanStore(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to query store: %w", err)
	}
	return store, nil
}

// GetBySlug retrieves a store by its public slug.
func (r *StoreRepository) GetBySlug(ctx context.Context, slug string) (*domain.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE slug = $1`

	store, err := scanStore(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to query store by slug: %w", err)
	}
	return store, nil
}

// ListByUser returns all stores owned by the user, newest first.
func (r *StoreRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var stores []domain.Store
	for rows.Next() {
		store, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, *store)
	}
	return stores, rows.Err()
}

// CountByUser returns how many stores the user owns. The limit gate compares
// this against the plan ceiling.
func (r *StoreRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stores WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stores: %w", err)
	}
	return count, nil
}

// Update writes name and description. The slug is fixed at creation.
func (r *StoreRepository) Update(ctx context.Context, store domain.Store) (*domain.Store, error) {
	query := `
		UPDATE stores SET
			name        = $2,
			description = NULLIF($3, ''),
			updated_at  = now()
		WHERE id = $1
		RETURNING ` + storeColumns

	saved, err := scanStore(r.pool.QueryRow(ctx, query, store.ID, store.Name, store.Description))
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to update store: %w", err)
	}
	return saved, nil
}

// Delete removes a store.
func (r *StoreRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stores WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStoreNotFound
	}
	return nil
}
