package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wichananm65/checkout-backend/internal/product"
	"github.com/wichananm65/checkout-backend/internal/session"
)

// Service orchestrates cart operations on the session cart.
type Service struct {
	products product.Repository
	log      *zap.Logger
}

func NewService(products product.Repository, log *zap.Logger) *Service {
	return &Service{products: products, log: log}
}

// Load decodes the session cart. ok is false when the session holds no cart.
func (s *Service) Load(sess session.Session) (c Cart, ok bool, err error) {
	raw, _ := sess.Get(SessionKey).(string)
	if raw == "" {
		return Cart{}, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Cart{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, true, nil
}

// Add puts quantity units of a listing in the cart. A listing that already has
// a slot, zeroed or not, reuses it; otherwise a slot is appended.
func (s *Service) Add(ctx context.Context, sess session.Session, listingID, quantity int) (Cart, error) {
	c, _, err := s.Load(sess)
	if err != nil {
		return Cart{}, err
	}
	p, err := s.products.GetByID(ctx, listingID)
	if err != nil {
		return Cart{}, err
	}

	slot := -1
	for i, l := range c.OrderItems {
		if l.ListingID == listingID {
			slot = i
			break
		}
	}
	if slot < 0 {
		c.OrderItems = append(c.OrderItems, Line{ListingID: listingID})
		slot = len(c.OrderItems) - 1
	}
	c.OrderItems[slot].Quantity = clamp(c.OrderItems[slot].Quantity+quantity, p.NumInStock)

	if err := s.RecomputeTotals(ctx, &c); err != nil {
		return Cart{}, err
	}
	return c, s.save(sess, c)
}

// SetQuantity sets the quantity at index to min(requested, stock on hand).
// Over-requests are clamped, never rejected.
func (s *Service) SetQuantity(ctx context.Context, sess session.Session, index, requested int) (QuantityResult, error) {
	c, _, err := s.Load(sess)
	if err != nil {
		return QuantityResult{}, err
	}
	if index < 0 || index >= len(c.OrderItems) {
		return QuantityResult{}, ErrIndexOutOfRange
	}

	p, err := s.products.GetByID(ctx, c.OrderItems[index].ListingID)
	if err != nil {
		return QuantityResult{}, err
	}
	qty := clamp(requested, p.NumInStock)
	c.OrderItems[index].Quantity = qty

	if err := s.RecomputeTotals(ctx, &c); err != nil {
		return QuantityResult{}, err
	}
	if err := s.save(sess, c); err != nil {
		return QuantityResult{}, err
	}
	return QuantityResult{MaxNum: qty, Title: p.Title, Total: c.Total}, nil
}

// SoftDelete zeroes the line at index. When the cart total reaches exactly
// zero the whole cart is dropped from the session and purged is true.
func (s *Service) SoftDelete(ctx context.Context, sess session.Session, index int) (c Cart, purged bool, err error) {
	c, _, err = s.Load(sess)
	if err != nil {
		return Cart{}, false, err
	}
	if index < 0 || index >= len(c.OrderItems) {
		return Cart{}, false, ErrIndexOutOfRange
	}

	c.OrderItems[index].Quantity = 0
	if err := s.RecomputeTotals(ctx, &c); err != nil {
		return Cart{}, false, err
	}

	if c.Total.IsZero() {
		s.log.Debug("cart total reached zero, purging", zap.Int("lines", len(c.OrderItems)))
		return c, true, s.Clear(sess)
	}
	return c, false, s.save(sess, c)
}

// RecomputeTotals rebuilds Total and Count from the current product prices.
// Every line is looked up, including zeroed ones; a vanished product fails
// the whole computation.
func (s *Service) RecomputeTotals(ctx context.Context, c *Cart) error {
	total := decimal.Zero
	count := 0
	for _, l := range c.OrderItems {
		p, err := s.products.GetByID(ctx, l.ListingID)
		if err != nil {
			return fmt.Errorf("price listing %d: %w", l.ListingID, err)
		}
		if l.Quantity > 0 {
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
			count += l.Quantity
		}
	}
	c.Total = total
	c.Count = count
	return nil
}

// SnapshotForDisplay yields the non-zero lines with their product and the
// quantity choices currently available. Products are fetched as the sequence
// is consumed; nothing is cached between calls.
func (s *Service) SnapshotForDisplay(ctx context.Context, c Cart) iter.Seq2[DisplayItem, error] {
	return func(yield func(DisplayItem, error) bool) {
		for i, l := range c.OrderItems {
			if l.Quantity <= 0 {
				continue
			}
			p, err := s.products.GetByID(ctx, l.ListingID)
			if err != nil {
				yield(DisplayItem{}, fmt.Errorf("display listing %d: %w", l.ListingID, err))
				return
			}
			item := DisplayItem{Index: i, Product: p, Quantity: l.Quantity, StockRange: p.StockRange()}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Clear removes the cart from the session entirely.
func (s *Service) Clear(sess session.Session) error {
	sess.Delete(SessionKey)
	return sess.Save()
}

func (s *Service) save(sess session.Session, c Cart) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	sess.Set(SessionKey, string(b))
	return sess.Save()
}

func clamp(qty, stock int) int {
	return max(0, min(qty, stock))
}
