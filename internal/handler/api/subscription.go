package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/domain"
	"github.com/dukerupert/idunn/internal/handler"
	"github.com/dukerupert/idunn/internal/service"
)

// SubscriptionHandler serves the subscription endpoints: current state,
// checkout, cancellation, and the billing portal.
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	plans         domain.PlanStore
	logger        *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(subscriptions service.SubscriptionService, plans domain.PlanStore, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		plans:         plans,
		logger:        logger,
	}
}

type subscriptionBody struct {
	ID                 uuid.UUID  `json:"id"`
	Status             string     `json:"status"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	CurrentPeriodStart time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time  `json:"currentPeriodEnd"`
	CanceledAt         *time.Time `json:"canceledAt,omitempty"`
}

type planBody struct {
	ID         uuid.UUID         `json:"id"`
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	PriceCents int32             `json:"priceCents"`
	Limits     domain.PlanLimits `json:"limits"`
}

func toSubscriptionBody(sub domain.Subscription) subscriptionBody {
	return subscriptionBody{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CanceledAt:         sub.CanceledAt,
	}
}

func toPlanBody(plan domain.Plan) planBody {
	return planBody{
		ID:         plan.ID,
		Code:       plan.Code,
		Name:       plan.Name,
		PriceCents: plan.PriceCents,
		Limits:     plan.Limits,
	}
}

// GetCurrent handles GET /api/subscription.
func (h *SubscriptionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	current, err := h.subscriptions.GetCurrent(r.Context(), userID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, struct {
		Subscription subscriptionBody `json:"subscription"`
		Plan         planBody         `json:"plan"`
	}{
		Subscription: toSubscriptionBody(current.Subscription),
		Plan:         toPlanBody(current.Plan),
	})
}

type checkoutRequest struct {
	PlanID     string `json:"planId" validate:"required,uuid"`
	SuccessURL string `json:"successUrl" validate:"required,url"`
	CancelURL  string `json:"cancelUrl" validate:"required,url"`
}

// Checkout handles POST /api/subscription. It starts a hosted checkout
// session; the subscription record is created later by the
// checkout.session.completed webhook.
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "api.subscription.checkout"

	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "planId must be a valid UUID"))
		return
	}

	result, err := h.subscriptions.Checkout(r.Context(), service.CheckoutParams{
		UserID:     userID,
		PlanID:     planID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, struct {
		SessionID string `json:"sessionId"`
		URL       string `json:"url"`
	}{
		SessionID: result.SessionID,
		URL:       result.URL,
	})
}

type updateSubscriptionRequest struct {
	Action string `json:"action" validate:"required"`
}

// Update handles PUT /api/subscription with {"action": "cancel"} or
// {"action": "reactivate"}.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "api.subscription.update"

	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	var req updateSubscriptionRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	var cancel bool
	switch req.Action {
	case "cancel":
		cancel = true
	case "reactivate":
		cancel = false
	default:
		handler.ErrorResponse(w, r, service.ErrInvalidAction)
		return
	}

	sub, err := h.subscriptions.UpdateCancellation(r.Context(), userID, cancel)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, struct {
		Subscription subscriptionBody `json:"subscription"`
	}{
		Subscription: toSubscriptionBody(*sub),
	})
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl" validate:"required,url"`
}

// Portal handles POST /api/subscription/portal.
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	const op = "api.subscription.portal"

	userID := domain.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	var req portalRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	url, err := h.subscriptions.CreatePortalSession(r.Context(), userID, req.ReturnURL)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, struct {
		URL string `json:"url"`
	}{URL: url})
}

// ListPlans handles GET /api/plans. Public; the pricing page uses it.
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	out := make([]planBody, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanBody(p))
	}
	handler.JSON(w, http.StatusOK, struct {
		Plans []planBody `json:"plans"`
	}{Plans: out})
}
