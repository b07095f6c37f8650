package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/idunn/internal/domain"
)

func newGateFixture(t *testing.T, plans ...domain.Plan) (LimitGate, *memSubscriptionStore, *memPlanStore) {
	t.Helper()
	subs := newMemSubscriptionStore()
	planStore := newMemPlanStore(plans...)
	return NewLimitGate(subs, planStore, nil), subs, planStore
}

func subscribe(t *testing.T, subs *memSubscriptionStore, userID uuid.UUID, plan domain.Plan) {
	t.Helper()
	_, err := subs.Create(context.Background(), domain.Subscription{
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionStatusActive,
		CurrentPeriodStart: testPeriodStart,
		CurrentPeriodEnd:   testPeriodEnd,
	})
	require.NoError(t, err)
}

func TestLimitGate_Allow(t *testing.T) {
	plan := domain.Plan{
		ID:     uuid.New(),
		Code:   domain.PlanCodePro,
		Name:   "Pro",
		Limits: domain.PlanLimits{domain.FeatureStores: 3},
	}
	free := domain.Plan{
		ID:     uuid.New(),
		Code:   domain.PlanCodeFree,
		Name:   "Free",
		Limits: domain.PlanLimits{domain.FeatureStores: 1},
	}

	t.Run("admits at the ceiling", func(t *testing.T) {
		gate, subs, _ := newGateFixture(t, plan, free)
		userID := uuid.New()
		subscribe(t, subs, userID, plan)

		allowed, err := gate.Allow(context.Background(), userID, domain.FeatureStores, 3)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("denies past the ceiling", func(t *testing.T) {
		gate, subs, _ := newGateFixture(t, plan, free)
		userID := uuid.New()
		subscribe(t, subs, userID, plan)

		allowed, err := gate.Allow(context.Background(), userID, domain.FeatureStores, 4)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("unconfigured feature admits", func(t *testing.T) {
		gate, subs, _ := newGateFixture(t, plan, free)
		userID := uuid.New()
		subscribe(t, subs, userID, plan)

		allowed, err := gate.Allow(context.Background(), userID, "custom_domains", 100)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("no active subscription falls back to free limits", func(t *testing.T) {
		gate, _, _ := newGateFixture(t, plan, free)
		userID := uuid.New()

		allowed, err := gate.Allow(context.Background(), userID, domain.FeatureStores, 1)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = gate.Allow(context.Background(), userID, domain.FeatureStores, 2)
		require.NoError(t, err)
		assert.False(t, allowed)
	})
}
