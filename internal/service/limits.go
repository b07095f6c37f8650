package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/telemetry"
)

// LimitGate answers plan-limit questions before a limited resource is
// created. Open by default: a feature with no configured ceiling is always
// admitted.
type LimitGate interface {
	// Allow reports whether the user may hold prospective units of the
	// feature. prospective is the count the user would have after the
	// operation, not the increment.
	Allow(ctx context.Context, userID uuid.UUID, featureCode string, prospective int) (bool, error)
}

type limitGate struct {
	subs   domain.SubscriptionStore
	plans  domain.PlanStore
	logger *slog.Logger
}

// NewLimitGate creates a plan-limit gate backed by the subscription record.
func NewLimitGate(subs domain.SubscriptionStore, plans domain.PlanStore, logger *slog.Logger) LimitGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &limitGate{
		subs:   subs,
		plans:  plans,
		logger: logger,
	}
}

// Allow resolves the user's active plan and checks the feature ceiling.
// Users with no active subscription row fall back to the free plan's limits.
// The count-then-check pattern is best-effort; a concurrent create can
// briefly exceed a ceiling.
func (g *limitGate) Allow(ctx context.Context, userID uuid.UUID, featureCode string, prospective int) (bool, error) {
	const op = "limits.allow"

	plan, err := g.activePlan(ctx, userID)
	if err != nil {
		return false, err
	}

	limit, ok := plan.Limits.Limit(featureCode)
	if !ok {
		// No ceiling configured for this feature.
		return true, nil
	}

	if prospective > limit {
		if telemetry.Business != nil {
			telemetry.Business.LimitDenied.WithLabelValues(featureCode, plan.Code).Inc()
		}
		g.logger.Info("plan limit reached",
			"user_id", userID,
			"feature", featureCode,
			"limit", limit,
			"prospective", prospective,
			"plan_code", plan.Code,
		)
		return false, nil
	}
	return true, nil
}

func (g *limitGate) activePlan(ctx context.Context, userID uuid.UUID) (*domain.Plan, error) {
	const op = "limits.active_plan"

	sub, err := g.subs.FindActiveByUser(ctx, userID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			// No active row: treat the user as free-plan.
			plan, err := g.plans.GetByCode(ctx, domain.PlanCodeFree)
			if err != nil {
				return nil, domain.Internal(err, op, "failed to load free plan")
			}
			return plan, nil
		}
		return nil, domain.Internal(err, op, "failed to load subscription")
	}

	plan, err := g.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load plan")
	}
	return plan, nil
}
