package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using the Stripe API.
type StripeProvider struct {
	config StripeConfig
	client *client.API
}

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sc := &client.API{}
	sc.Init(config.APIKey, nil)

	return &StripeProvider{
		config: config,
		client: sc,
	}, nil
}

// CreateCustomer creates a Stripe customer.
func (s *StripeProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	cp := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
	}
	cp.Context = ctx
	if params.Name != "" {
		cp.Name = stripe.String(params.Name)
	}
	for k, v := range params.Metadata {
		cp.AddMetadata(k, v)
	}

	cust, err := s.client.Customers.New(cp)
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	return &Customer{
		ID:        cust.ID,
		Email:     cust.Email,
		Name:      cust.Name,
		CreatedAt: time.Unix(cust.Created, 0).UTC(),
	}, nil
}

// CreateCheckoutSession creates a subscription-mode Checkout session.
// Metadata is attached to both the session and the subscription it creates,
// so webhook handlers can attribute either object to a user.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(params.CustomerID),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: params.Metadata,
		},
	}
	sp.Context = ctx
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}

	sess, err := s.client.CheckoutSessions.New(sp)
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	return &CheckoutSession{
		ID:  sess.ID,
		URL: sess.URL,
	}, nil
}

// GetSubscription retrieves a subscription from Stripe.
func (s *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	gp := &stripe.SubscriptionParams{}
	gp.Context = ctx

	sub, err := s.client.Subscriptions.Get(subscriptionID, gp)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrSubscriptionNotFound
		}
		return nil, wrapStripeErr(err)
	}

	return subscriptionFromStripe(sub), nil
}

// UpdateCancelAtPeriodEnd flips the pending-cancellation flag on a subscription.
func (s *StripeProvider) UpdateCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*Subscription, error) {
	up := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	up.Context = ctx

	sub, err := s.client.Subscriptions.Update(subscriptionID, up)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrSubscriptionNotFound
		}
		return nil, wrapStripeErr(err)
	}

	return subscriptionFromStripe(sub), nil
}

// CreateCustomerPortalSession creates a billing portal session.
func (s *StripeProvider) CreateCustomerPortalSession(ctx context.Context, params PortalSessionParams) (*PortalSession, error) {
	pp := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(params.CustomerID),
		ReturnURL: stripe.String(params.ReturnURL),
	}
	pp.Context = ctx

	sess, err := s.client.BillingPortalSessions.New(pp)
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	return &PortalSession{
		ID:        sess.ID,
		URL:       sess.URL,
		CreatedAt: time.Unix(sess.Created, 0).UTC(),
	}, nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if _, err := webhook.ConstructEvent(payload, signature, secret); err != nil {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// subscriptionFromStripe maps the SDK subscription to the billing type.
// Period bounds live on the subscription item since API version 2025-03-31.
func subscriptionFromStripe(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
		CreatedAt:         time.Unix(sub.Created, 0).UTC(),
	}

	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}

	if sub.CanceledAt > 0 {
		t := time.Unix(sub.CanceledAt, 0).UTC()
		out.CanceledAt = &t
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}

	return out
}

// wrapStripeErr converts SDK errors into StripeError for callers.
func wrapStripeErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &StripeError{
			Message:       stripeErr.Msg,
			Code:          string(stripeErr.Code),
			RequestID:     stripeErr.RequestID,
			OriginalError: err,
		}
	}
	return err
}
