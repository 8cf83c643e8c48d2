package order

import (
	"context"

	"go.uber.org/zap"

	"github.com/wichananm65/checkout-backend/internal/cart"
	"github.com/wichananm65/checkout-backend/internal/session"
)

// Finalizer completes an order once the payment provider reports success.
type Finalizer struct {
	orders Repository
	carts  *cart.Service
	log    *zap.Logger
}

func NewFinalizer(orders Repository, carts *cart.Service, log *zap.Logger) *Finalizer {
	return &Finalizer{orders: orders, carts: carts, log: log}
}

// Finalize marks o paid, takes its items out of stock and clears the session
// cart. Nothing changes when the stock cannot cover the order.
func (f *Finalizer) Finalize(ctx context.Context, sess session.Session, o Order) (Order, error) {
	if err := f.orders.Finalize(ctx, o.ID); err != nil {
		f.log.Warn("order finalization failed", zap.Int("order_id", o.ID), zap.Error(err))
		return Order{}, err
	}
	o.Paid = true

	if err := f.carts.Clear(sess); err != nil {
		// the order is already paid; a stale cart only shows up as a fresh checkout
		f.log.Error("clear cart after finalization", zap.Int("order_id", o.ID), zap.Error(err))
		return o, nil
	}
	f.log.Info("order paid", zap.Int("order_id", o.ID), zap.String("reference", o.Reference))
	return o, nil
}
