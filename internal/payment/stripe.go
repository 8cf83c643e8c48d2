package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// StripeProvider opens Stripe Checkout sessions. The secret key never leaves
// the server.
type StripeProvider struct {
	client  session.Client
	timeout time.Duration
}

func NewStripeProvider(secretKey string, timeout time.Duration) *StripeProvider {
	return &StripeProvider{
		client:  session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		timeout: timeout,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (CheckoutSession, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	params := sessionParams(req)
	params.Context = ctx
	s, err := p.client.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return fromStripe(s), nil
}

func (p *StripeProvider) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.client.Get(id, params)
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
		return CheckoutSession{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: get checkout session %s: %w", id, err)
	}
	return fromStripe(s), nil
}

func fromStripe(s *stripe.CheckoutSession) CheckoutSession {
	return CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Reference:     s.ClientReferenceID,
		PaymentStatus: string(s.PaymentStatus),
	}
}

func sessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	if req.Reference != "" {
		params.ClientReferenceID = stripe.String(req.Reference)
	}
	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(it.Currency),
				UnitAmount: stripe.Int64(it.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}
	return params
}
