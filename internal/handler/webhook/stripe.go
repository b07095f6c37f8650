// Package webhook receives and classifies billing-provider events.
package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/idunn/internal/billing"
	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/handler"
	"github.com/dukerupert/idunn/internal/service"
	"github.com/dukerupert/idunn/internal/telemetry"
)

// StripeHandler handles Stripe webhook events.
type StripeHandler struct {
	provider      billing.Provider
	subscriptions service.SubscriptionService
	config        StripeWebhookConfig
	logger        *slog.Logger
}

// StripeWebhookConfig contains configuration for Stripe webhook handling.
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from the Stripe dashboard.
	WebhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler.
func NewStripeHandler(provider billing.Provider, subscriptions service.SubscriptionService, config StripeWebhookConfig, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider:      provider,
		subscriptions: subscriptions,
		config:        config,
		logger:        logger,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// The signature is verified before the payload is trusted; a bad signature is
// rejected without touching any record. Unknown event types are acknowledged
// so Stripe stops redelivering them. Processing failures return a non-2xx
// status so Stripe redelivers the event.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger customer.subscription.updated
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warn("webhook rejected: missing Stripe-Signature header")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Missing signature"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		h.logger.Warn("webhook rejected: signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Invalid JSON"))
		return
	}

	h.logger.Info("stripe webhook received", "event_type", event.Type, "event_id", event.ID)

	eventType := string(event.Type)
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(eventType).Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues(eventType).Observe(time.Since(startTime).Seconds())
		}()
	}

	classified, err := h.classify(event)
	if err != nil {
		// Payloads we can never process (missing metadata, malformed data)
		// are acknowledged; retrying them cannot help.
		h.logger.Warn("webhook payload not processable, acknowledging",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err,
		)
		acknowledge(w)
		return
	}
	if classified == nil {
		// Event type we deliberately don't handle.
		acknowledge(w)
		return
	}

	err = h.subscriptions.ProcessEvent(r.Context(), service.ProcessEventParams{
		EventID:   event.ID,
		EventType: eventType,
		Payload:   payload,
		Event:     classified,
	})
	if err != nil {
		h.logger.Error("webhook processing failed",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(eventType, domain.ErrorCode(err)).Inc()
		}
		// Non-2xx makes Stripe redeliver the event.
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(eventType).Inc()
	}
	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}

// classify parses a raw Stripe event into a lifecycle event variant.
// A nil event with nil error means the type is intentionally unhandled.
func (h *StripeHandler) classify(event stripe.Event) (service.Event, error) {
	switch event.Type {
	case "checkout.session.completed":
		return classifyCheckoutCompleted(event)
	case "customer.subscription.updated":
		return classifySubscriptionUpdated(event)
	case "customer.subscription.deleted":
		return classifySubscriptionDeleted(event)
	case "invoice.payment_failed":
		return classifyInvoicePaymentFailed(event)
	default:
		h.logger.Debug("unhandled stripe event type", "event_type", event.Type)
		return nil, nil
	}
}

func classifyCheckoutCompleted(event stripe.Event) (service.Event, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "malformed checkout session payload")
	}

	userID, err := uuid.Parse(session.Metadata["user_id"])
	if err != nil {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "checkout session %s has no user_id metadata", session.ID)
	}
	planCode := session.Metadata["plan_code"]
	if planCode == "" {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "checkout session %s has no plan_code metadata", session.ID)
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "checkout session %s has no subscription", session.ID)
	}

	ev := service.CheckoutCompleted{
		UserID:         userID,
		PlanCode:       planCode,
		SubscriptionID: session.Subscription.ID,
	}
	if session.Customer != nil {
		ev.CustomerID = session.Customer.ID
	}
	// Period bounds are usually absent from the session payload; the
	// reconciler refreshes them from the provider.
	if items := session.Subscription.Items; items != nil && len(items.Data) > 0 {
		ev.PeriodStart = time.Unix(items.Data[0].CurrentPeriodStart, 0).UTC()
		ev.PeriodEnd = time.Unix(items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	return ev, nil
}

func classifySubscriptionUpdated(event stripe.Event) (service.Event, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "malformed subscription payload")
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "subscription %s has no items", sub.ID)
	}

	item := sub.Items.Data[0]
	ev := service.SubscriptionUpdated{
		SubscriptionID:    sub.ID,
		Status:            service.MapProviderStatus(string(sub.Status)),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PeriodStart:       time.Unix(item.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:         time.Unix(item.CurrentPeriodEnd, 0).UTC(),
		PlanCode:          sub.Metadata["plan_code"],
	}
	if sub.CanceledAt > 0 {
		t := time.Unix(sub.CanceledAt, 0).UTC()
		ev.CanceledAt = &t
	}
	return ev, nil
}

func classifySubscriptionDeleted(event stripe.Event) (service.Event, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "malformed subscription payload")
	}

	ev := service.SubscriptionDeleted{SubscriptionID: sub.ID}
	// The user is resolved from the stored record; metadata is a fallback
	// worth carrying when present.
	if raw := sub.Metadata["user_id"]; raw != "" {
		if userID, err := uuid.Parse(raw); err == nil {
			ev.UserID = userID
		}
	}
	return ev, nil
}

func classifyInvoicePaymentFailed(event stripe.Event) (service.Event, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "malformed invoice payload")
	}

	if invoice.Parent == nil || invoice.Parent.SubscriptionDetails == nil ||
		invoice.Parent.SubscriptionDetails.Subscription == nil ||
		invoice.Parent.SubscriptionDetails.Subscription.ID == "" {
		return nil, domain.Errorf(domain.EINVALID, "webhook.classify", "invoice %s is not for a subscription", invoice.ID)
	}

	return service.InvoicePaymentFailed{
		SubscriptionID: invoice.Parent.SubscriptionDetails.Subscription.ID,
	}, nil
}
