package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wichananm65/checkout-backend/internal/cart"
	"github.com/wichananm65/checkout-backend/internal/session"
)

// unsavableSession loses every write, like a session store that went away.
type unsavableSession struct {
	*session.MemorySession
}

func (unsavableSession) Save() error { return errors.New("redis: connection refused") }

func checkoutOrder(t *testing.T, f fixture, lines ...[2]int) Order {
	t.Helper()
	ctx := context.Background()
	c := f.cart(t, lines...)
	o, err := f.orders.GetOrCreateOpen(ctx, 42)
	require.NoError(t, err)
	_, err = NewReconciler(f.orders, f.products, Lenient, zap.NewNop()).Reconcile(ctx, o, c)
	require.NoError(t, err)
	return o
}

func stockOf(t *testing.T, f fixture, id int) int {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.NumInStock
}

func TestFinalize_PaysDecrementsAndClearsCart(t *testing.T) {
	f := newFixture(t, defaultSeed())
	o := checkoutOrder(t, f, [2]int{1, 2}, [2]int{2, 1})

	paid, err := NewFinalizer(f.orders, f.carts, zap.NewNop()).Finalize(context.Background(), f.sess, o)
	require.NoError(t, err)

	assert.True(t, paid.Paid)
	assert.Equal(t, 3, stockOf(t, f, 1))
	assert.Equal(t, 0, stockOf(t, f, 2))
	assert.False(t, f.sess.Has(cart.SessionKey))

	_, err = f.orders.GetOpen(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound, "a paid order is no longer open")
}

func TestFinalize_SecondCallIsRejected(t *testing.T) {
	f := newFixture(t, defaultSeed())
	o := checkoutOrder(t, f, [2]int{1, 2})
	fin := NewFinalizer(f.orders, f.carts, zap.NewNop())

	_, err := fin.Finalize(context.Background(), f.sess, o)
	require.NoError(t, err)
	_, err = fin.Finalize(context.Background(), f.sess, o)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, 3, stockOf(t, f, 1), "stock is taken once")
}

func TestFinalize_InventoryConflictChangesNothing(t *testing.T) {
	f := newFixture(t, defaultSeed())
	o := checkoutOrder(t, f, [2]int{1, 2}, [2]int{2, 1})

	// someone else bought the last bowl in the meantime
	other, err := f.orders.GetOrCreateOpen(context.Background(), 7)
	require.NoError(t, err)
	_, err = f.orders.ReplaceItems(context.Background(), other.ID, []Item{{ProductID: 2, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, f.orders.Finalize(context.Background(), other.ID))

	_, err = NewFinalizer(f.orders, f.carts, zap.NewNop()).Finalize(context.Background(), f.sess, o)
	var conflict *InventoryConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 2, conflict.ProductID)

	assert.Equal(t, 5, stockOf(t, f, 1), "no partial decrement")
	assert.True(t, f.sess.Has(cart.SessionKey), "cart survives a failed finalization")
	open, err := f.orders.GetOpen(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, open.Paid)
}

func TestFinalize_UnknownOrder(t *testing.T) {
	f := newFixture(t, defaultSeed())
	_, err := NewFinalizer(f.orders, f.carts, zap.NewNop()).Finalize(context.Background(), f.sess, Order{ID: 99})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalize_CartClearFailureStillReportsPaid(t *testing.T) {
	f := newFixture(t, defaultSeed())
	o := checkoutOrder(t, f, [2]int{1, 2})

	paid, err := NewFinalizer(f.orders, f.carts, zap.NewNop()).
		Finalize(context.Background(), unsavableSession{f.sess}, o)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	assert.Equal(t, 3, stockOf(t, f, 1))
}

func TestReplaceItems_ClearsPaymentSession(t *testing.T) {
	f := newFixture(t, defaultSeed())
	ctx := context.Background()
	o := checkoutOrder(t, f, [2]int{1, 2})

	o, err := f.orders.SetPaymentSession(ctx, o.ID, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", o.PaymentSessionID)

	_, err = f.orders.ReplaceItems(ctx, o.ID, []Item{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)
	open, err := f.orders.GetOpen(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, open.PaymentSessionID)
}
