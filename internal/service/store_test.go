package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/idunn/internal/domain"
)

type allowAllGate struct{}

func (allowAllGate) Allow(context.Context, uuid.UUID, string, int) (bool, error) {
	return true, nil
}

type denyGate struct{}

func (denyGate) Allow(context.Context, uuid.UUID, string, int) (bool, error) {
	return false, nil
}

func TestCreateStore(t *testing.T) {
	t.Run("creates store with slug", func(t *testing.T) {
		svc := NewStoreService(newMemStoreRepo(), allowAllGate{}, nil)

		store, err := svc.CreateStore(context.Background(), CreateStoreParams{
			UserID:      uuid.New(),
			Name:        "My Coffee Picks",
			Description: "  Curated roasts  ",
		})
		require.NoError(t, err)
		assert.Equal(t, "My Coffee Picks", store.Name)
		assert.Equal(t, "my-coffee-picks", store.Slug)
		assert.Equal(t, "Curated roasts", store.Description)
	})

	t.Run("gate denial is forbidden with upgrade message", func(t *testing.T) {
		repo := newMemStoreRepo()
		svc := NewStoreService(repo, denyGate{}, nil)

		_, err := svc.CreateStore(context.Background(), CreateStoreParams{
			UserID: uuid.New(),
			Name:   "One Too Many",
		})
		require.Error(t, err)
		assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
		assert.Equal(t, "Store limit reached. Upgrade your plan to create more stores.", domain.ErrorMessage(err))

		count, _ := repo.CountByUser(context.Background(), uuid.Nil)
		assert.Zero(t, count, "denied creation must not insert")
	})

	t.Run("blank name is invalid", func(t *testing.T) {
		svc := NewStoreService(newMemStoreRepo(), allowAllGate{}, nil)

		_, err := svc.CreateStore(context.Background(), CreateStoreParams{
			UserID: uuid.New(),
			Name:   "   ",
		})
		require.Error(t, err)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		svc := NewStoreService(newMemStoreRepo(), allowAllGate{}, nil)
		userID := uuid.New()

		_, err := svc.CreateStore(context.Background(), CreateStoreParams{UserID: userID, Name: "Gear Shed"})
		require.NoError(t, err)

		_, err = svc.CreateStore(context.Background(), CreateStoreParams{UserID: userID, Name: "Gear Shed"})
		assert.ErrorIs(t, err, domain.ErrStoreSlugExists)
	})
}

func TestStoreOwnership(t *testing.T) {
	svc := NewStoreService(newMemStoreRepo(), allowAllGate{}, nil)
	owner := uuid.New()
	stranger := uuid.New()

	store, err := svc.CreateStore(context.Background(), CreateStoreParams{UserID: owner, Name: "Owner Only"})
	require.NoError(t, err)

	t.Run("owner can read", func(t *testing.T) {
		got, err := svc.GetStore(context.Background(), owner, store.ID)
		require.NoError(t, err)
		assert.Equal(t, store.ID, got.ID)
	})

	t.Run("other users read as not found", func(t *testing.T) {
		_, err := svc.GetStore(context.Background(), stranger, store.ID)
		assert.ErrorIs(t, err, domain.ErrStoreNotFound)
	})

	t.Run("other users cannot delete", func(t *testing.T) {
		err := svc.DeleteStore(context.Background(), stranger, store.ID)
		assert.ErrorIs(t, err, domain.ErrStoreNotFound)

		_, err = svc.GetStore(context.Background(), owner, store.ID)
		assert.NoError(t, err)
	})
}

func TestUpdateStore_KeepsSlug(t *testing.T) {
	svc := NewStoreService(newMemStoreRepo(), allowAllGate{}, nil)
	userID := uuid.New()

	store, err := svc.CreateStore(context.Background(), CreateStoreParams{UserID: userID, Name: "Original Name"})
	require.NoError(t, err)

	updated, err := svc.UpdateStore(context.Background(), UpdateStoreParams{
		UserID:  userID,
		StoreID: store.ID,
		Name:    "Renamed Shop",
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Shop", updated.Name)
	assert.Equal(t, store.Slug, updated.Slug, "slug is fixed at creation")
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Coffee Picks", "my-coffee-picks"},
		{"  Spaces   Everywhere  ", "spaces-everywhere"},
		{"Deals & Steals!", "deals-steals"},
		{"UPPER", "upper"},
		{"café corner", "café-corner"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}
