package billing

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestStripeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  StripeConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: StripeConfig{
				APIKey:        "sk_test_abc123",
				WebhookSecret: "whsec_abc123",
			},
			wantErr: false,
		},
		{
			name: "missing API key",
			config: StripeConfig{
				WebhookSecret: "whsec_abc123",
			},
			wantErr: true,
		},
		{
			name: "missing webhook secret",
			config: StripeConfig{
				APIKey: "sk_test_abc123",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStripeConfig_IsTestMode(t *testing.T) {
	assert.True(t, (&StripeConfig{APIKey: "sk_test_abc123"}).IsTestMode())
	assert.False(t, (&StripeConfig{APIKey: "sk_live_abc123"}).IsTestMode())
	assert.False(t, (&StripeConfig{APIKey: "short"}).IsTestMode())
}

func TestNewStripeProvider_InvalidConfig(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{})
	require.Error(t, err)
}

// signatureHeader builds a valid Stripe-Signature header for a payload.
func signatureHeader(payload []byte, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func TestStripeProvider_VerifyWebhookSignature(t *testing.T) {
	provider, err := NewStripeProvider(StripeConfig{
		APIKey:        "sk_test_abc123",
		WebhookSecret: "whsec_test_secret",
	})
	require.NoError(t, err)

	payload := []byte(`{"id": "evt_test_123", "type": "customer.subscription.updated"}`)
	secret := "whsec_test_secret"

	t.Run("accepts valid signature", func(t *testing.T) {
		header := signatureHeader(payload, secret, time.Now())
		err := provider.VerifyWebhookSignature(payload, header, secret)
		assert.NoError(t, err)
	})

	t.Run("rejects signature from wrong secret", func(t *testing.T) {
		header := signatureHeader(payload, "whsec_other_secret", time.Now())
		err := provider.VerifyWebhookSignature(payload, header, secret)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("rejects tampered payload", func(t *testing.T) {
		header := signatureHeader(payload, secret, time.Now())
		tampered := []byte(`{"id": "evt_test_456", "type": "customer.subscription.deleted"}`)
		err := provider.VerifyWebhookSignature(tampered, header, secret)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("rejects stale timestamp", func(t *testing.T) {
		header := signatureHeader(payload, secret, time.Now().Add(-24*time.Hour))
		err := provider.VerifyWebhookSignature(payload, header, secret)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("rejects garbage header", func(t *testing.T) {
		err := provider.VerifyWebhookSignature(payload, "not-a-signature", secret)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})
}

func TestSubscriptionFromStripe(t *testing.T) {
	canceledAt := int64(1735689600) // 2025-01-01T00:00:00Z
	periodStart := int64(1733011200)
	periodEnd := int64(1735689600)

	sub := &stripe.Subscription{
		ID:                "sub_test_123",
		Status:            stripe.SubscriptionStatusActive,
		CancelAtPeriodEnd: true,
		CanceledAt:        canceledAt,
		Created:           periodStart,
		Customer:          &stripe.Customer{ID: "cus_test_456"},
		Metadata:          map[string]string{"user_id": "u1", "plan_code": "pro"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					CurrentPeriodStart: periodStart,
					CurrentPeriodEnd:   periodEnd,
					Price:              &stripe.Price{ID: "price_pro_monthly"},
				},
			},
		},
	}

	got := subscriptionFromStripe(sub)

	assert.Equal(t, "sub_test_123", got.ID)
	assert.Equal(t, "active", got.Status)
	assert.Equal(t, "cus_test_456", got.CustomerID)
	assert.Equal(t, "price_pro_monthly", got.PriceID)
	assert.True(t, got.CancelAtPeriodEnd)
	require.NotNil(t, got.CanceledAt)
	assert.Equal(t, time.Unix(canceledAt, 0).UTC(), *got.CanceledAt)
	assert.Equal(t, time.Unix(periodStart, 0).UTC(), got.CurrentPeriodStart)
	assert.Equal(t, time.Unix(periodEnd, 0).UTC(), got.CurrentPeriodEnd)
	assert.Equal(t, "pro", got.Metadata["plan_code"])
}

func TestSubscriptionFromStripe_NoItems(t *testing.T) {
	sub := &stripe.Subscription{
		ID:     "sub_empty",
		Status: stripe.SubscriptionStatusCanceled,
	}

	got := subscriptionFromStripe(sub)

	assert.Equal(t, "sub_empty", got.ID)
	assert.Nil(t, got.CanceledAt)
	assert.True(t, got.CurrentPeriodStart.IsZero())
	assert.Empty(t, got.CustomerID)
}

func TestMockProvider_CheckoutSession(t *testing.T) {
	mock := NewMockProvider()

	sess, err := mock.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		CustomerID: "cus_abc",
		PriceID:    "price_pro_monthly",
		SuccessURL: "https://app.example.com/billing/success",
		CancelURL:  "https://app.example.com/billing/cancel",
		Metadata:   map[string]string{"user_id": "u1", "plan_code": "pro"},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Contains(t, sess.URL, sess.ID)
	assert.Contains(t, mock.CallLog, "CreateCheckoutSession(cus_abc, price_pro_monthly)")
}

func TestMockProvider_UpdateCancelAtPeriodEnd(t *testing.T) {
	mock := NewMockProvider()
	mock.SeedSubscription(&Subscription{
		ID:     "sub_123",
		Status: "active",
	})

	sub, err := mock.UpdateCancelAtPeriodEnd(context.Background(), "sub_123", true)
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)

	_, err = mock.UpdateCancelAtPeriodEnd(context.Background(), "sub_missing", true)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}
