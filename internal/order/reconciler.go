package order

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wichananm65/checkout-backend/internal/cart"
	"github.com/wichananm65/checkout-backend/internal/product"
)

// MissingProductPolicy decides what reconciliation does with a cart line whose
// product no longer exists.
type MissingProductPolicy string

const (
	// Lenient skips the line and logs a warning.
	Lenient MissingProductPolicy = "lenient"
	// Strict aborts with ErrMissingProduct.
	Strict MissingProductPolicy = "strict"
)

// Reconciler rebuilds the persisted items of an open order from the session cart.
type Reconciler struct {
	orders   Repository
	products product.Repository
	policy   MissingProductPolicy
	log      *zap.Logger
}

func NewReconciler(orders Repository, products product.Repository, policy MissingProductPolicy, log *zap.Logger) *Reconciler {
	if policy == "" {
		policy = Lenient
	}
	return &Reconciler{orders: orders, products: products, policy: policy, log: log}
}

// Reconcile replaces every item of o with one item per cart line that has a
// positive quantity. Stock is not touched.
func (r *Reconciler) Reconcile(ctx context.Context, o Order, c cart.Cart) ([]Item, error) {
	items := make([]Item, 0, len(c.OrderItems))
	for _, l := range c.OrderItems {
		if l.Quantity <= 0 {
			continue
		}
		p, err := r.products.GetByID(ctx, l.ListingID)
		if errors.Is(err, product.ErrNotFound) {
			if r.policy == Strict {
				return nil, fmt.Errorf("%w: listing %d", ErrMissingProduct, l.ListingID)
			}
			r.log.Warn("skipping cart line for missing product",
				zap.Int("order_id", o.ID), zap.Int("listing_id", l.ListingID))
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, Item{OrderID: o.ID, ProductID: p.ID, Quantity: l.Quantity})
	}

	out, err := r.orders.ReplaceItems(ctx, o.ID, items)
	if err != nil {
		return nil, fmt.Errorf("reconcile order %d: %w", o.ID, err)
	}
	r.log.Debug("order reconciled", zap.Int("order_id", o.ID), zap.Int("items", len(out)))
	return out, nil
}
