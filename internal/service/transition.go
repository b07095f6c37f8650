package service

import (
	"time"

	"github.com/dukerupert/idunn/internal/domain"
)

// Apply computes the next subscription record for a lifecycle event.
//
// It is a pure function: no store, no provider, no clock besides the now
// argument. The reconciler wraps it with reads and writes; tests exercise it
// directly.
//
// current is the existing record for the event's subscription, nil when none
// exists yet (only valid for CheckoutCompleted). plan is the resolved plan
// for events that carry a plan code, nil otherwise.
//
// canceled_at is written exactly once: an already-set value survives every
// later transition.
func Apply(current *domain.Subscription, ev Event, plan *domain.Plan, now time.Time) (domain.Subscription, error) {
	switch e := ev.(type) {
	case CheckoutCompleted:
		if plan == nil {
			return domain.Subscription{}, domain.Errorf(domain.EINVALID, "subscription.apply", "checkout completed without a resolved plan")
		}
		if err := validPeriod(e.PeriodStart, e.PeriodEnd); err != nil {
			return domain.Subscription{}, err
		}

		next := domain.Subscription{
			UserID:                 e.UserID,
			PlanID:                 plan.ID,
			Status:                 domain.SubscriptionStatusActive,
			ProviderSubscriptionID: e.SubscriptionID,
			ProviderCustomerID:     e.CustomerID,
			CurrentPeriodStart:     e.PeriodStart,
			CurrentPeriodEnd:       e.PeriodEnd,
		}
		if current != nil {
			next.ID = current.ID
			next.CreatedAt = current.CreatedAt
		}
		return next, nil

	case SubscriptionUpdated:
		if current == nil {
			return domain.Subscription{}, domain.ErrSubscriptionNotFound
		}
		if !e.Status.Valid() {
			return domain.Subscription{}, domain.Errorf(domain.EINVALID, "subscription.apply", "unknown subscription status: %s", e.Status)
		}
		if err := validPeriod(e.PeriodStart, e.PeriodEnd); err != nil {
			return domain.Subscription{}, err
		}

		next := *current
		next.Status = e.Status
		next.CancelAtPeriodEnd = e.CancelAtPeriodEnd
		next.CurrentPeriodStart = e.PeriodStart
		next.CurrentPeriodEnd = e.PeriodEnd
		if plan != nil {
			next.PlanID = plan.ID
		}
		if next.CanceledAt == nil {
			next.CanceledAt = e.CanceledAt
		}
		return next, nil

	case SubscriptionDeleted:
		if current == nil {
			return domain.Subscription{}, domain.ErrSubscriptionNotFound
		}

		next := *current
		next.Status = domain.SubscriptionStatusCanceled
		if next.CanceledAt == nil {
			t := now
			next.CanceledAt = &t
		}
		return next, nil

	case InvoicePaymentFailed:
		if current == nil {
			return domain.Subscription{}, domain.ErrSubscriptionNotFound
		}

		next := *current
		next.Status = domain.SubscriptionStatusPastDue
		return next, nil

	default:
		return domain.Subscription{}, domain.Errorf(domain.EINVALID, "subscription.apply", "unhandled event kind: %s", ev.Kind())
	}
}

func validPeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return domain.Errorf(domain.EINVALID, "subscription.apply", "missing billing period bounds")
	}
	if !start.Before(end) {
		return domain.Errorf(domain.EINVALID, "subscription.apply", "period start must precede period end")
	}
	return nil
}

// MapProviderStatus maps a Stripe subscription status to the local status.
// Provider statuses without a local counterpart collapse to the nearest one.
func MapProviderStatus(status string) domain.SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return domain.SubscriptionStatusActive
	case "past_due", "unpaid", "incomplete":
		return domain.SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return domain.SubscriptionStatusCanceled
	default:
		return domain.SubscriptionStatus(status)
	}
}
