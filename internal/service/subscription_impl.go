package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/billing"
	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/telemetry"
)

// subscriptionService implements SubscriptionService.
type subscriptionService struct {
	subs          domain.SubscriptionStore
	plans         domain.PlanStore
	users         domain.UserStore
	notifications domain.NotificationStore
	webhookEvents domain.WebhookEventStore
	provider      billing.Provider
	logger        *slog.Logger
}

// SubscriptionServiceDeps contains the collaborators for the subscription service.
type SubscriptionServiceDeps struct {
	Subscriptions domain.SubscriptionStore
	Plans         domain.PlanStore
	Users         domain.UserStore
	Notifications domain.NotificationStore
	WebhookEvents domain.WebhookEventStore
	Provider      billing.Provider
	Logger        *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService instance.
func NewSubscriptionService(deps SubscriptionServiceDeps) SubscriptionService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &subscriptionService{
		subs:          deps.Subscriptions,
		plans:         deps.Plans,
		users:         deps.Users,
		notifications: deps.Notifications,
		webhookEvents: deps.WebhookEvents,
		provider:      deps.Provider,
		logger:        logger,
	}
}

const webhookProvider = "stripe"

// ProcessEvent applies a classified webhook event to the subscription record.
func (s *subscriptionService) ProcessEvent(ctx context.Context, params ProcessEventParams) error {
	const op = "subscription.process_event"

	if params.Event == nil {
		return domain.Errorf(domain.EINVALID, op, "no event to process")
	}

	// Replayed event IDs are short-circuited before any write.
	if params.EventID != "" {
		_, err := s.webhookEvents.GetByProviderEventID(ctx, webhookProvider, params.EventID)
		if err == nil {
			s.logger.Info("skipping replayed webhook event",
				"event_id", params.EventID,
				"event_type", params.EventType,
			)
			return nil
		}
		if !domain.IsCode(err, domain.ENOTFOUND) {
			return domain.Internal(err, op, "failed to check webhook event record")
		}
	}

	var err error
	switch ev := params.Event.(type) {
	case CheckoutCompleted:
		err = s.applyCheckoutCompleted(ctx, ev)
	case SubscriptionUpdated:
		err = s.applySubscriptionUpdated(ctx, ev)
	case SubscriptionDeleted:
		err = s.applySubscriptionDeleted(ctx, ev)
	case InvoicePaymentFailed:
		err = s.applyInvoicePaymentFailed(ctx, ev)
	default:
		err = domain.Errorf(domain.EINVALID, op, "unhandled event kind: %s", ev.Kind())
	}
	if err != nil {
		return err
	}

	// Record the event ID only after processing succeeded, so failures are
	// redelivered. A conflict here means a concurrent delivery won the race.
	if params.EventID != "" {
		_, err := s.webhookEvents.Create(ctx, domain.WebhookEvent{
			Provider:        webhookProvider,
			ProviderEventID: params.EventID,
			EventType:       params.EventType,
			Payload:         params.Payload,
		})
		if err != nil && !domain.IsCode(err, domain.ECONFLICT) {
			s.logger.Warn("failed to record processed webhook event",
				"event_id", params.EventID,
				"error", err,
			)
		}
	}

	return nil
}

func (s *subscriptionService) applyCheckoutCompleted(ctx context.Context, ev CheckoutCompleted) error {
	const op = "subscription.checkout_completed"

	plan, err := s.plans.GetByCode(ctx, ev.PlanCode)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return domain.Errorf(domain.EINVALID, op, "unknown plan code: %s", ev.PlanCode)
		}
		return domain.Internal(err, op, "failed to resolve plan")
	}

	// Refresh period bounds from the provider; the checkout session payload
	// does not carry them.
	if ev.PeriodStart.IsZero() || ev.PeriodEnd.IsZero() {
		psub, err := s.provider.GetSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return domain.Internal(err, op, "failed to refresh subscription from provider")
		}
		ev.PeriodStart = psub.CurrentPeriodStart
		ev.PeriodEnd = psub.CurrentPeriodEnd
		if ev.CustomerID == "" {
			ev.CustomerID = psub.CustomerID
		}
	}

	current, err := s.subs.FindByProviderID(ctx, ev.SubscriptionID)
	if err != nil {
		if !domain.IsCode(err, domain.ENOTFOUND) {
			return domain.Internal(err, op, "failed to load subscription record")
		}
		current = nil
	}

	next, err := Apply(current, ev, plan, time.Now().UTC())
	if err != nil {
		return err
	}

	// The previous free row is retired first so the one-active-row-per-user
	// constraint holds when the paid row lands.
	if err := s.subs.RetireActiveForUser(ctx, ev.UserID, ev.SubscriptionID); err != nil {
		return domain.Internal(err, op, "failed to retire previous subscription rows")
	}

	saved, err := s.subs.Upsert(ctx, next)
	if err != nil {
		return domain.Internal(err, op, "failed to save subscription record")
	}

	if telemetry.Business != nil {
		telemetry.Business.SubscriptionsActivated.WithLabelValues(ev.PlanCode).Inc()
	}
	s.logger.Info("subscription activated from checkout",
		"user_id", ev.UserID,
		"plan_code", ev.PlanCode,
		"provider_subscription_id", saved.ProviderSubscriptionID,
	)
	return nil
}

func (s *subscriptionService) applySubscriptionUpdated(ctx context.Context, ev SubscriptionUpdated) error {
	const op = "subscription.updated"

	current, err := s.subs.FindByProviderID(ctx, ev.SubscriptionID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			// Unknown subscription: fail the delivery so the provider
			// redelivers after the checkout event lands.
			return domain.ErrSubscriptionNotFound
		}
		return domain.Internal(err, op, "failed to load subscription record")
	}

	var plan *domain.Plan
	if ev.PlanCode != "" {
		plan, err = s.plans.GetByCode(ctx, ev.PlanCode)
		if err != nil {
			if !domain.IsCode(err, domain.ENOTFOUND) {
				return domain.Internal(err, op, "failed to resolve plan")
			}
			s.logger.Warn("subscription updated with unknown plan code, keeping current plan",
				"provider_subscription_id", ev.SubscriptionID,
				"plan_code", ev.PlanCode,
			)
			plan = nil
		}
	}

	next, err := Apply(current, ev, plan, time.Now().UTC())
	if err != nil {
		return err
	}

	// A late update can reactivate a row that was canceled by an earlier
	// deleted event, while the free fallback row is also active. Retire the
	// other active rows first so one active row per user holds.
	if next.Status == domain.SubscriptionStatusActive && current.Status != domain.SubscriptionStatusActive {
		if err := s.subs.RetireActiveForUser(ctx, current.UserID, ev.SubscriptionID); err != nil {
			return domain.Internal(err, op, "failed to retire previous subscription rows")
		}
	}

	if _, err := s.subs.Upsert(ctx, next); err != nil {
		return domain.Internal(err, op, "failed to save subscription record")
	}
	return nil
}

func (s *subscriptionService) applySubscriptionDeleted(ctx context.Context, ev SubscriptionDeleted) error {
	const op = "subscription.deleted"

	current, err := s.subs.FindByProviderID(ctx, ev.SubscriptionID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return domain.ErrSubscriptionNotFound
		}
		return domain.Internal(err, op, "failed to load subscription record")
	}

	next, err := Apply(current, ev, nil, time.Now().UTC())
	if err != nil {
		return err
	}

	if _, err := s.subs.Upsert(ctx, next); err != nil {
		return domain.Internal(err, op, "failed to save subscription record")
	}

	// The user falls back to the free plan; never leave them without an
	// active row.
	if _, err := s.subs.FindActiveByUser(ctx, current.UserID); err != nil {
		if !domain.IsCode(err, domain.ENOTFOUND) {
			return domain.Internal(err, op, "failed to check for active subscription")
		}
		if _, err := s.CreateFreeSubscription(ctx, current.UserID); err != nil {
			return domain.Internal(err, op, "failed to create free-plan fallback")
		}
	}

	if telemetry.Business != nil {
		telemetry.Business.SubscriptionsCanceled.Inc()
	}
	s.logger.Info("subscription canceled, user moved to free plan",
		"user_id", current.UserID,
		"provider_subscription_id", ev.SubscriptionID,
	)
	return nil
}

func (s *subscriptionService) applyInvoicePaymentFailed(ctx context.Context, ev InvoicePaymentFailed) error {
	const op = "subscription.payment_failed"

	current, err := s.subs.FindByProviderID(ctx, ev.SubscriptionID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return domain.ErrSubscriptionNotFound
		}
		return domain.Internal(err, op, "failed to load subscription record")
	}

	next, err := Apply(current, ev, nil, time.Now().UTC())
	if err != nil {
		return err
	}

	if _, err := s.subs.Upsert(ctx, next); err != nil {
		return domain.Internal(err, op, "failed to save subscription record")
	}

	if _, err := s.notifications.Create(ctx, domain.Notification{
		UserID:  current.UserID,
		Kind:    domain.NotificationPaymentFailed,
		Message: "We couldn't process your latest payment. Please update your payment method to keep your plan.",
	}); err != nil {
		return domain.Internal(err, op, "failed to record payment-failed notification")
	}

	if telemetry.Business != nil {
		telemetry.Business.SubscriptionsPastDue.Inc()
	}
	s.logger.Info("subscription past due after failed payment",
		"user_id", current.UserID,
		"provider_subscription_id", ev.SubscriptionID,
	)
	return nil
}

// GetCurrent returns the user's active subscription joined with its plan.
func (s *subscriptionService) GetCurrent(ctx context.Context, userID uuid.UUID) (*domain.SubscriptionWithPlan, error) {
	const op = "subscription.get_current"

	sub, err := s.subs.FindActiveByUser(ctx, userID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrNoActiveSubscription
		}
		return nil, domain.Internal(err, op, "failed to load subscription")
	}

	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load plan")
	}

	return &domain.SubscriptionWithPlan{
		Subscription: *sub,
		Plan:         *plan,
	}, nil
}

// Checkout starts a hosted checkout session for a paid plan.
func (s *subscriptionService) Checkout(ctx context.Context, params CheckoutParams) (*CheckoutResult, error) {
	const op = "subscription.checkout"

	plan, err := s.plans.GetByID(ctx, params.PlanID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, domain.Internal(err, op, "failed to load plan")
	}
	if plan.IsFree() || plan.StripePriceID == "" {
		return nil, domain.Invalid(op, "plan has no billable price")
	}

	account, err := s.users.GetByID(ctx, params.UserID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}

	customerID, err := s.billingCustomerID(ctx, account)
	if err != nil {
		return nil, err
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutSessionParams{
		CustomerID: customerID,
		PriceID:    plan.StripePriceID,
		SuccessURL: params.SuccessURL,
		CancelURL:  params.CancelURL,
		Metadata: map[string]string{
			"user_id":   params.UserID.String(),
			"plan_code": plan.Code,
		},
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, op, "failed to create checkout session")
	}

	if telemetry.Business != nil {
		telemetry.Business.CheckoutSessionsCreated.WithLabelValues(plan.Code).Inc()
	}
	s.logger.Info("checkout session created",
		"user_id", params.UserID,
		"plan_code", plan.Code,
		"session_id", sess.ID,
	)

	return &CheckoutResult{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}

// billingCustomerID reuses the customer from a previous subscription row,
// creating a provider customer on first checkout.
func (s *subscriptionService) billingCustomerID(ctx context.Context, account *domain.Account) (string, error) {
	const op = "subscription.billing_customer"

	sub, err := s.subs.FindActiveByUser(ctx, account.ID)
	if err == nil && sub.ProviderCustomerID != "" {
		return sub.ProviderCustomerID, nil
	}
	if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
		return "", domain.Internal(err, op, "failed to load subscription")
	}

	customer, err := s.provider.CreateCustomer(ctx, billing.CreateCustomerParams{
		Email:    account.Email,
		Metadata: map[string]string{"user_id": account.ID.String()},
	})
	if err != nil {
		return "", domain.WrapError(err, domain.EPAYMENT, op, "failed to create billing customer")
	}
	return customer.ID, nil
}

// UpdateCancellation flips cancel_at_period_end at the provider and locally.
func (s *subscriptionService) UpdateCancellation(ctx context.Context, userID uuid.UUID, cancel bool) (*domain.Subscription, error) {
	const op = "subscription.update_cancellation"

	sub, err := s.subs.FindActiveByUser(ctx, userID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrNoActiveSubscription
		}
		return nil, domain.Internal(err, op, "failed to load subscription")
	}
	if !sub.IsPaid() {
		return nil, domain.Invalid(op, "free plan subscriptions cannot be canceled")
	}

	psub, err := s.provider.UpdateCancelAtPeriodEnd(ctx, sub.ProviderSubscriptionID, cancel)
	if err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, op, "failed to update subscription at provider")
	}

	// Provider call succeeded; a local failure past this point is surfaced
	// rather than rolled back, and the next webhook converges the record.
	update := domain.SubscriptionStatusUpdate{
		Status:            MapProviderStatus(psub.Status),
		CancelAtPeriodEnd: &psub.CancelAtPeriodEnd,
		CanceledAt:        psub.CanceledAt,
	}
	if err := s.subs.UpdateStatus(ctx, sub.ProviderSubscriptionID, update); err != nil {
		return nil, domain.Internal(err, op,
			fmt.Sprintf("provider updated but local record not refreshed for %s", sub.ProviderSubscriptionID))
	}

	updated, err := s.subs.FindByProviderID(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to reload subscription")
	}
	return updated, nil
}

// CreatePortalSession creates a billing portal session for the user.
func (s *subscriptionService) CreatePortalSession(ctx context.Context, userID uuid.UUID, returnURL string) (string, error) {
	const op = "subscription.portal"

	sub, err := s.subs.FindActiveByUser(ctx, userID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return "", domain.ErrNoActiveSubscription
		}
		return "", domain.Internal(err, op, "failed to load subscription")
	}
	if sub.ProviderCustomerID == "" {
		return "", domain.Invalid(op, "no billing profile for this account")
	}

	sess, err := s.provider.CreateCustomerPortalSession(ctx, billing.PortalSessionParams{
		CustomerID: sub.ProviderCustomerID,
		ReturnURL:  returnURL,
	})
	if err != nil {
		return "", domain.WrapError(err, domain.EPAYMENT, op, "failed to create portal session")
	}
	return sess.URL, nil
}

// CreateFreeSubscription inserts an active free-plan row for the user.
func (s *subscriptionService) CreateFreeSubscription(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	const op = "subscription.create_free"

	if existing, err := s.subs.FindActiveByUser(ctx, userID); err == nil {
		return existing, nil
	} else if !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, domain.Internal(err, op, "failed to check for active subscription")
	}

	free, err := s.plans.GetByCode(ctx, domain.PlanCodeFree)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load free plan")
	}

	// Free rows are never billed; a nominal one-year window satisfies the
	// period invariant.
	now := time.Now().UTC()
	sub, err := s.subs.Create(ctx, domain.Subscription{
		UserID:             userID,
		PlanID:             free.ID,
		Status:             domain.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(1, 0, 0),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create free subscription")
	}
	return sub, nil
}
