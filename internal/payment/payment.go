// Package payment talks to the hosted checkout provider.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrProviderUnavailable is returned while the provider is failing fast.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrUnknownSession      = errors.New("unknown checkout session")
)

// StatusPaid is the payment status of a session whose funds were captured.
const StatusPaid = "paid"

// LineItem is one row of the provider's checkout page. UnitAmount is in minor
// currency units.
type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Quantity   int64  `json:"quantity"`
}

// SessionRequest describes the checkout session to open.
type SessionRequest struct {
	Items      []LineItem
	SuccessURL string
	CancelURL  string
	// Reference ties the provider session back to the order.
	Reference string
}

// CheckoutSession is the provider's answer: the client redirects to URL.
type CheckoutSession struct {
	ID            string `json:"session_id"`
	URL           string `json:"checkout_url"`
	Reference     string `json:"reference,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

// Paid reports whether the provider captured the payment.
func (s CheckoutSession) Paid() bool { return s.PaymentStatus == StatusPaid }

// Provider creates hosted checkout sessions and reports on them.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error)
}

// MinorUnits converts a decimal amount to the provider's integer minor units,
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FakeProvider records requests and answers with a deterministic session. It
// is used in development when no provider key is configured, and in tests.
type FakeProvider struct {
	mu       sync.Mutex
	Requests []SessionRequest
	// Err, when set, is returned instead of a session.
	Err error
	// AutoPay reports every created session as paid.
	AutoPay  bool
	sessions map[string]CheckoutSession
}

func (f *FakeProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return CheckoutSession{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return CheckoutSession{}, f.Err
	}
	id := fmt.Sprintf("cs_test_%d", len(f.Requests))
	cs := CheckoutSession{
		ID:            id,
		URL:           "https://checkout.example.test/pay/" + id,
		Reference:     req.Reference,
		PaymentStatus: "unpaid",
	}
	if f.AutoPay {
		cs.PaymentStatus = StatusPaid
	}
	if f.sessions == nil {
		f.sessions = map[string]CheckoutSession{}
	}
	f.sessions[id] = cs
	return cs, nil
}

func (f *FakeProvider) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return CheckoutSession{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return CheckoutSession{}, f.Err
	}
	cs, ok := f.sessions[id]
	if !ok {
		return CheckoutSession{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return cs, nil
}

// Pay marks a created session as paid, as the hosted page would.
func (f *FakeProvider) Pay(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cs, ok := f.sessions[id]; ok {
		cs.PaymentStatus = StatusPaid
		f.sessions[id] = cs
	}
}

// Calls returns how many sessions were requested.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}
