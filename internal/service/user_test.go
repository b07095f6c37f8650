package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/idunn/internal/billing"
	"github.com/dukerupert/idunn/internal/domain"
)

func newUserFixture(t *testing.T) (UserService, *memSessionStore, *memSubscriptionStore) {
	t.Helper()

	free := domain.Plan{
		ID:     uuid.New(),
		Code:   domain.PlanCodeFree,
		Name:   "Free",
		Limits: domain.PlanLimits{domain.FeatureStores: 1},
	}

	users := newMemUserStore()
	sessions := newMemSessionStore()
	subs := newMemSubscriptionStore()

	subSvc := NewSubscriptionService(SubscriptionServiceDeps{
		Subscriptions: subs,
		Plans:         newMemPlanStore(free),
		Users:         users,
		Notifications: newMemNotificationStore(),
		WebhookEvents: newMemWebhookEventStore(),
		Provider:      billing.NewMockProvider(),
	})

	return NewUserService(users, sessions, subSvc, nil), sessions, subs
}

func TestRegister(t *testing.T) {
	t.Run("creates account, free subscription, and session", func(t *testing.T) {
		svc, _, subs := newUserFixture(t)

		account, token, err := svc.Register(context.Background(), "New@Example.com ", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", account.Email)
		assert.NotEmpty(t, token)

		sub, err := subs.FindActiveByUser(context.Background(), account.ID)
		require.NoError(t, err)
		assert.Empty(t, sub.ProviderSubscriptionID, "new accounts start on the free plan")
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)

		_, _, err := svc.Register(context.Background(), "dup@example.com", "correct-horse")
		require.NoError(t, err)

		_, _, err = svc.Register(context.Background(), "dup@example.com", "another-pass")
		assert.ErrorIs(t, err, domain.ErrUserExists)
	})

	t.Run("invalid email", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)

		_, _, err := svc.Register(context.Background(), "not-an-email", "correct-horse")
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	})

	t.Run("short password", func(t *testing.T) {
		svc, _, _ := newUserFixture(t)

		_, _, err := svc.Register(context.Background(), "short@example.com", "tiny")
		require.Error(t, err)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}

func TestLogin(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	account, _, err := svc.Register(context.Background(), "login@example.com", "correct-horse")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		got, token, err := svc.Login(context.Background(), "login@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "login@example.com", "wrong")
		assert.ErrorIs(t, err, domain.ErrInvalidPassword)
	})

	t.Run("unknown email reads as wrong password", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "nobody@example.com", "correct-horse")
		assert.ErrorIs(t, err, domain.ErrInvalidPassword)
	})
}

func TestGetBySessionToken(t *testing.T) {
	svc, sessions, _ := newUserFixture(t)

	account, token, err := svc.Register(context.Background(), "sess@example.com", "correct-horse")
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		got, err := svc.GetBySessionToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.GetBySessionToken(context.Background(), "no-such-token")
		assert.ErrorIs(t, err, domain.ErrSessionExpired)
	})

	t.Run("expired token is cleaned up", func(t *testing.T) {
		expired := "expired-token"
		require.NoError(t, sessions.Create(context.Background(), domain.Session{
			Token:     expired,
			UserID:    account.ID,
			ExpiresAt: time.Now().Add(-time.Hour),
		}))

		_, err := svc.GetBySessionToken(context.Background(), expired)
		assert.ErrorIs(t, err, domain.ErrSessionExpired)

		_, err = sessions.GetByToken(context.Background(), expired)
		assert.Error(t, err, "expired session should have been deleted")
	})

	t.Run("logout invalidates token", func(t *testing.T) {
		_, fresh, err := svc.Login(context.Background(), "sess@example.com", "correct-horse")
		require.NoError(t, err)

		require.NoError(t, svc.Logout(context.Background(), fresh))

		_, err = svc.GetBySessionToken(context.Background(), fresh)
		assert.ErrorIs(t, err, domain.ErrSessionExpired)
	})
}
