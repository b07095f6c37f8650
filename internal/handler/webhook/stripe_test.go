package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/idunn/internal/billing"
	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/service"
)

// stubSubscriptionService records ProcessEvent calls; the other operations
// are not exercised by the webhook handler.
type stubSubscriptionService struct {
	processed []service.ProcessEventParams
	err       error
}

func (s *stubSubscriptionService) ProcessEvent(_ context.Context, params service.ProcessEventParams) error {
	s.processed = append(s.processed, params)
	return s.err
}

func (s *stubSubscriptionService) GetCurrent(context.Context, uuid.UUID) (*domain.SubscriptionWithPlan, error) {
	panic("not used")
}

func (s *stubSubscriptionService) Checkout(context.Context, service.CheckoutParams) (*service.CheckoutResult, error) {
	panic("not used")
}

func (s *stubSubscriptionService) UpdateCancellation(context.Context, uuid.UUID, bool) (*domain.Subscription, error) {
	panic("not used")
}

func (s *stubSubscriptionService) CreatePortalSession(context.Context, uuid.UUID, string) (string, error) {
	panic("not used")
}

func (s *stubSubscriptionService) CreateFreeSubscription(context.Context, uuid.UUID) (*domain.Subscription, error) {
	panic("not used")
}

func newTestHandler(t *testing.T) (*StripeHandler, *stubSubscriptionService, *billing.MockProvider) {
	t.Helper()
	svc := &stubSubscriptionService{}
	provider := billing.NewMockProvider()
	h := NewStripeHandler(provider, svc, StripeWebhookConfig{WebhookSecret: "whsec_test"}, nil)
	return h, svc, provider
}

func postWebhook(t *testing.T, h *StripeHandler, body string, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func eventBody(t *testing.T, id, eventType string, object any) string {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":%s}}`, id, eventType, raw)
}

func subscriptionObject(id string, status string, cancelAtPeriodEnd bool) map[string]any {
	return map[string]any{
		"id":                   id,
		"status":               status,
		"cancel_at_period_end": cancelAtPeriodEnd,
		"metadata":             map[string]string{"plan_code": "pro"},
		"items": map[string]any{
			"data": []map[string]any{{
				"current_period_start": 1735689600,
				"current_period_end":   1738368000,
			}},
		},
	}
}

func TestHandleWebhook_MissingSignature(t *testing.T) {
	h, svc, _ := newTestHandler(t)

	rec := postWebhook(t, h, `{}`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.processed, "unverified payloads must not be processed")
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	h, svc, provider := newTestHandler(t)
	provider.VerifyWebhookSignatureFunc = func([]byte, string, string) error {
		return billing.ErrInvalidWebhookSignature
	}

	body := eventBody(t, "evt_1", "customer.subscription.updated", subscriptionObject("sub_1", "active", false))
	rec := postWebhook(t, h, body, "t=1,v1=bogus")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.processed)
}

func TestHandleWebhook_SubscriptionUpdated(t *testing.T) {
	h, svc, _ := newTestHandler(t)

	body := eventBody(t, "evt_2", "customer.subscription.updated", subscriptionObject("sub_1", "past_due", true))
	rec := postWebhook(t, h, body, "t=1,v1=good")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())

	require.Len(t, svc.processed, 1)
	params := svc.processed[0]
	assert.Equal(t, "evt_2", params.EventID)
	assert.Equal(t, "customer.subscription.updated", params.EventType)

	ev, ok := params.Event.(service.SubscriptionUpdated)
	require.True(t, ok, "expected SubscriptionUpdated, got %T", params.Event)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
	assert.Equal(t, domain.SubscriptionStatusPastDue, ev.Status)
	assert.True(t, ev.CancelAtPeriodEnd)
	assert.Equal(t, "pro", ev.PlanCode)
	assert.Equal(t, int64(1735689600), ev.PeriodStart.Unix())
	assert.Equal(t, int64(1738368000), ev.PeriodEnd.Unix())
}

func TestHandleWebhook_CheckoutCompleted(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	userID := uuid.New()

	object := map[string]any{
		"id":           "cs_1",
		"customer":     "cus_1",
		"subscription": "sub_new",
		"metadata": map[string]string{
			"user_id":   userID.String(),
			"plan_code": "pro",
		},
	}
	body := eventBody(t, "evt_3", "checkout.session.completed", object)
	rec := postWebhook(t, h, body, "t=1,v1=good")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.processed, 1)

	ev, ok := svc.processed[0].Event.(service.CheckoutCompleted)
	require.True(t, ok, "expected CheckoutCompleted, got %T", svc.processed[0].Event)
	assert.Equal(t, userID, ev.UserID)
	assert.Equal(t, "pro", ev.PlanCode)
	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.Equal(t, "sub_new", ev.SubscriptionID)
}

func TestHandleWebhook_CheckoutWithoutMetadataAcknowledged(t *testing.T) {
	h, svc, _ := newTestHandler(t)

	// No user_id metadata: retrying cannot help, so the event is acknowledged.
	object := map[string]any{
		"id":           "cs_2",
		"subscription": "sub_x",
	}
	body := eventBody(t, "evt_4", "checkout.session.completed", object)
	rec := postWebhook(t, h, body, "t=1,v1=good")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.processed)
}

func TestHandleWebhook_SubscriptionDeleted(t *testing.T) {
	h, svc, _ := newTestHandler(t)

	object := map[string]any{"id": "sub_gone", "status": "canceled"}
	body := eventBody(t, "evt_5", "customer.subscription.deleted", object)
	rec := postWebhook(t, h, body, "t=1,v1=good")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.processed, 1)

	ev, ok := svc.processed[0].Event.(service.SubscriptionDeleted)
	require.True(t, ok)
	assert.Equal(t, "sub_gone", ev.SubscriptionID)
}

func TestHandleWebhook_InvoicePaymentFailed(t *testing.T) {
	h, svc, _ := newTestHandler(t)

	t.Run("subscription invoice", func(t *testing.T) {
		object := map[string]any{
			"id": "in_1",
			"parent": map[string]any{
				"subscription_details": map[string]any{
					"subscription": "sub_late",
				},
			},
		}
		body := eventBody(t, "evt_6", "invoice.payment_failed", object)
		rec := postWebhook(t, h, body, "t=1,v1=good")

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, svc.processed, 1)

		ev, ok := svc.processed[0].Event.(service.InvoicePaymentFailed)
		require.True(t, ok)
		assert.Equal(t, "sub_late", ev.SubscriptionID)
	})

	t.Run("one-off invoice acknowledged without processing", func(t *testing.T) {
		svc.processed = nil
		body := eventBody(t, "evt_7", "invoice.payment_failed", map[string]any{"id": "in_2"})
		rec := postWebhook(t, h, body, "t=1,v1=good")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, svc.processed)
	})
}

func TestHandleWebhook_UnknownEventTypeAcknowledged(t *testing.T) {
	h, svc, _ := newTestHandler(t)

	body := eventBody(t, "evt_8", "customer.created", map[string]any{"id": "cus_1"})
	rec := postWebhook(t, h, body, "t=1,v1=good")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	assert.Empty(t, svc.processed)
}

func TestHandleWebhook_ProcessingFailureReturnsError(t *testing.T) {
	h, svc, _ := newTestHandler(t)
	svc.err = domain.ErrSubscriptionNotFound

	body := eventBody(t, "evt_9", "customer.subscription.updated", subscriptionObject("sub_unknown", "active", false))
	rec := postWebhook(t, h, body, "t=1,v1=good")

	// Non-2xx tells Stripe to redeliver.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleWebhook_MalformedJSON(t *testing.T) {
	h, svc, _ := newTestHandler(t)

	rec := postWebhook(t, h, `not json`, "t=1,v1=good")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.processed)
}
