package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/checkout-backend/internal/cart"
	"github.com/wichananm65/checkout-backend/internal/destination"
	"github.com/wichananm65/checkout-backend/internal/order"
	"github.com/wichananm65/checkout-backend/internal/payment"
	"github.com/wichananm65/checkout-backend/internal/product"
	"github.com/wichananm65/checkout-backend/internal/session"
)

var (
	// ErrEmptyCart means there is nothing to check out.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentNotVerified means the confirm callback does not match a paid
	// provider session opened for the order.
	ErrPaymentNotVerified = errors.New("payment not verified")
)

// ShippingLineName labels the synthetic shipping line sent to the provider.
const ShippingLineName = "Shipping"

// Settings are the provider-facing parts of the configuration.
type Settings struct {
	Currency       string
	BaseURL        string
	PublishableKey string
}

// Service drives the stages past the cart.
type Service struct {
	carts        *cart.Service
	orders       order.Repository
	products     product.Repository
	destinations destination.Repository
	reconciler   *order.Reconciler
	finalizer    *order.Finalizer
	provider     payment.Provider
	settings     Settings
	log          *zap.Logger
}

// Deps groups the collaborators of Service.
type Deps struct {
	Carts        *cart.Service
	Orders       order.Repository
	Products     product.Repository
	Destinations destination.Repository
	Reconciler   *order.Reconciler
	Finalizer    *order.Finalizer
	Provider     payment.Provider
}

func NewService(d Deps, settings Settings, log *zap.Logger) *Service {
	settings.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	return &Service{
		carts:        d.Carts,
		orders:       d.Orders,
		products:     d.Products,
		destinations: d.Destinations,
		reconciler:   d.Reconciler,
		finalizer:    d.Finalizer,
		provider:     d.Provider,
		settings:     settings,
		log:          log,
	}
}

// Snapshot is everything a stage needs to decide and render.
type Snapshot struct {
	Cart  cart.Cart
	Order order.Order
	State State
}

// Snapshot loads the customer's cart and open order.
func (s *Service) Snapshot(ctx context.Context, customerID int, sess session.Session) (Snapshot, error) {
	c, _, err := s.carts.Load(sess)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Cart: c, State: State{CartEmpty: c.IsEmpty()}}

	o, err := s.orders.GetOpen(ctx, customerID)
	switch {
	case errors.Is(err, order.ErrNotFound):
	case err != nil:
		return Snapshot{}, err
	default:
		snap.Order = o
		snap.State.HasOpenOrder = true
		snap.State.ShippingComplete = o.Complete()
	}
	return snap, nil
}

// Proceed reconciles the session cart into the customer's open order,
// creating the order on first use.
func (s *Service) Proceed(ctx context.Context, customerID int, sess session.Session) (order.Order, []order.Item, error) {
	c, _, err := s.carts.Load(sess)
	if err != nil {
		return order.Order{}, nil, err
	}
	if c.IsEmpty() {
		return order.Order{}, nil, ErrEmptyCart
	}
	o, err := s.orders.GetOrCreateOpen(ctx, customerID)
	if err != nil {
		return order.Order{}, nil, err
	}
	items, err := s.reconciler.Reconcile(ctx, o, c)
	if err != nil {
		return order.Order{}, nil, err
	}
	return o, items, nil
}

// SaveShipping validates form and, when it is clean, stores it on o. The
// order is left untouched when errs is non-empty.
func (s *Service) SaveShipping(ctx context.Context, o order.Order, form ShippingForm) (order.Order, map[string]string, error) {
	form.Normalize()
	errs, err := form.Validate(ctx, s.destinations)
	if err != nil {
		return order.Order{}, nil, err
	}
	if len(errs) > 0 {
		return o, errs, nil
	}
	updated, err := s.orders.UpdateShipping(ctx, o.ID, form.Shipping())
	if err != nil {
		return order.Order{}, nil, err
	}
	return updated, nil, nil
}

// Destinations lists where the shop ships to.
func (s *Service) Destinations(ctx context.Context) ([]destination.Destination, error) {
	return s.destinations.List(ctx)
}

// PaymentView is what the client needs to start the provider's payment UI.
type PaymentView struct {
	SessionID      string             `json:"session_id"`
	CheckoutURL    string             `json:"checkout_url"`
	PublishableKey string             `json:"publishable_key"`
	Order          order.Order        `json:"order"`
	LineItems      []payment.LineItem `json:"line_items"`
}

// LineItems prices the persisted items of o, plus one line for shipping to
// the order's country.
func (s *Service) LineItems(ctx context.Context, o order.Order) ([]payment.LineItem, error) {
	items, err := s.orders.Items(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	var (
		products []product.Product
		dest     destination.Destination
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.products.ListByIDs(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		dest, err = s.destinations.Get(gctx, o.Country)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]payment.LineItem, 0, len(items)+1)
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("price order item %d: %w", it.ID, product.ErrNotFound)
		}
		out = append(out, payment.LineItem{
			Name:       p.Title,
			UnitAmount: payment.MinorUnits(p.Price),
			Currency:   s.settings.Currency,
			Quantity:   int64(it.Quantity),
		})
	}
	out = append(out, payment.LineItem{
		Name:       ShippingLineName,
		UnitAmount: payment.MinorUnits(dest.ShippingPrice),
		Currency:   s.settings.Currency,
		Quantity:   1,
	})
	return out, nil
}

// StartPayment rebuilds the items of the open order from the cart, opens a
// provider session for them and records it on the order. Provider failures
// are returned as they are; nothing is retried.
func (s *Service) StartPayment(ctx context.Context, snap Snapshot) (PaymentView, error) {
	o := snap.Order
	if _, err := s.reconciler.Reconcile(ctx, o, snap.Cart); err != nil {
		return PaymentView{}, err
	}
	lines, err := s.LineItems(ctx, o)
	if err != nil {
		return PaymentView{}, err
	}
	cs, err := s.provider.CreateCheckoutSession(ctx, payment.SessionRequest{
		Items:      lines,
		SuccessURL: s.settings.BaseURL + StageConfirm.Path() + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.settings.BaseURL + StageCart.Path(),
		Reference:  o.Reference,
	})
	if err != nil {
		return PaymentView{}, &ProviderError{Err: err}
	}
	o, err = s.orders.SetPaymentSession(ctx, o.ID, cs.ID)
	if err != nil {
		return PaymentView{}, err
	}
	s.log.Info("payment session created", zap.Int("order_id", o.ID), zap.String("session_id", cs.ID))
	return PaymentView{
		SessionID:      cs.ID,
		CheckoutURL:    cs.URL,
		PublishableKey: s.settings.PublishableKey,
		Order:          o,
		LineItems:      lines,
	}, nil
}

// Confirm finalizes o once sessionID is the session recorded on o and the
// provider reports it paid.
func (s *Service) Confirm(ctx context.Context, sess session.Session, o order.Order, sessionID string) (order.Order, []order.Item, error) {
	if err := s.verifyPayment(ctx, o, sessionID); err != nil {
		return order.Order{}, nil, err
	}
	paid, err := s.finalizer.Finalize(ctx, sess, o)
	if err != nil {
		return order.Order{}, nil, err
	}
	items, err := s.orders.Items(ctx, o.ID)
	if err != nil {
		return order.Order{}, nil, err
	}
	return paid, items, nil
}

func (s *Service) verifyPayment(ctx context.Context, o order.Order, sessionID string) error {
	if o.PaymentSessionID == "" || sessionID != o.PaymentSessionID {
		s.log.Warn("confirm with a session not opened for the order",
			zap.Int("order_id", o.ID), zap.String("session_id", sessionID))
		return ErrPaymentNotVerified
	}
	cs, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if errors.Is(err, payment.ErrUnknownSession) {
		return ErrPaymentNotVerified
	}
	if err != nil {
		return &ProviderError{Err: err}
	}
	if !cs.Paid() || cs.Reference != o.Reference {
		s.log.Warn("payment session not paid",
			zap.Int("order_id", o.ID), zap.String("session_id", sessionID), zap.String("status", cs.PaymentStatus))
		return ErrPaymentNotVerified
	}
	return nil
}

// ProviderError wraps any failure of the payment provider.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return "payment provider: " + e.Err.Error() }

func (e *ProviderError) Unwrap() error { return e.Err }
