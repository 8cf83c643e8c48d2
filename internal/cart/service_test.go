package cart

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wichananm65/checkout-backend/internal/product"
	"github.com/wichananm65/checkout-backend/internal/session"
)

func seedProducts() []product.Product {
	return []product.Product{
		{ID: 1, Title: "Cat Scratcher Bed", Price: decimal.RequireFromString("8.40"), NumInStock: 5},
		{ID: 2, Title: "Double Food Bowl", Price: decimal.RequireFromString("4.20"), NumInStock: 3},
		{ID: 3, Title: "Cat Sweater", Price: decimal.RequireFromString("2.60"), NumInStock: 10},
	}
}

func newTestService(t *testing.T) (*Service, *product.InMemoryRepository, *session.MemorySession) {
	t.Helper()
	repo := product.NewInMemoryRepository(seedProducts())
	return NewService(repo, zap.NewNop()), repo, session.NewMemorySession()
}

func fill(t *testing.T, s *Service, sess session.Session) {
	t.Helper()
	ctx := context.Background()
	for _, add := range []struct{ id, qty int }{{1, 2}, {2, 1}, {3, 4}} {
		_, err := s.Add(ctx, sess, add.id, add.qty)
		require.NoError(t, err)
	}
}

func expectedTotal(t *testing.T, repo product.Repository, c Cart) decimal.Decimal {
	t.Helper()
	total := decimal.Zero
	for _, l := range c.OrderItems {
		if l.Quantity <= 0 {
			continue
		}
		p, err := repo.GetByID(context.Background(), l.ListingID)
		require.NoError(t, err)
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func TestAdd_AppendsAndReusesSlots(t *testing.T) {
	s, _, sess := newTestService(t)
	ctx := context.Background()
	fill(t, s, sess)

	c, err := s.Add(ctx, sess, 1, 10)
	require.NoError(t, err)
	require.Len(t, c.OrderItems, 3)
	assert.Equal(t, 5, c.OrderItems[0].Quantity, "clamped to stock")
	assert.Equal(t, 10, c.Count)
	assert.Equal(t, "56.60", c.Total.StringFixed(2))

	_, err = s.Add(ctx, sess, 99, 1)
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestSetQuantity_ClampsToStock(t *testing.T) {
	s, _, sess := newTestService(t)
	ctx := context.Background()
	fill(t, s, sess)

	res, err := s.SetQuantity(ctx, sess, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MaxNum, "requests within stock are honoured exactly")
	assert.Equal(t, "Double Food Bowl", res.Title)

	res, err = s.SetQuantity(ctx, sess, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, res.MaxNum)

	res, err = s.SetQuantity(ctx, sess, 1, -4)
	require.NoError(t, err)
	assert.Equal(t, 0, res.MaxNum)

	c, ok, err := s.Load(sess)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, res.Total.Equal(c.Total))
	assert.Equal(t, "27.20", c.Total.StringFixed(2))
}

func TestSetQuantity_IndexOutOfRange(t *testing.T) {
	s, _, sess := newTestService(t)
	fill(t, s, sess)

	_, err := s.SetQuantity(context.Background(), sess, 3, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.SetQuantity(context.Background(), sess, -1, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	empty := session.NewMemorySession()
	_, err = s.SetQuantity(context.Background(), empty, 0, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSoftDelete_KeepsPositions(t *testing.T) {
	s, _, sess := newTestService(t)
	fill(t, s, sess)

	before, _, err := s.Load(sess)
	require.NoError(t, err)

	after, purged, err := s.SoftDelete(context.Background(), sess, 1)
	require.NoError(t, err)
	assert.False(t, purged)
	require.Len(t, after.OrderItems, len(before.OrderItems))
	for i := range before.OrderItems {
		assert.Equal(t, before.OrderItems[i].ListingID, after.OrderItems[i].ListingID)
		if i != 1 {
			assert.Equal(t, before.OrderItems[i].Quantity, after.OrderItems[i].Quantity)
		}
	}
	assert.Equal(t, 0, after.OrderItems[1].Quantity)
}

func TestSoftDelete_PurgesCartAtZeroTotal(t *testing.T) {
	s, _, sess := newTestService(t)
	ctx := context.Background()
	_, err := s.Add(ctx, sess, 2, 1)
	require.NoError(t, err)

	_, purged, err := s.SoftDelete(ctx, sess, 0)
	require.NoError(t, err)
	assert.True(t, purged)
	assert.False(t, sess.Has(SessionKey))
}

func TestRecomputeTotals_MissingProductIsHardError(t *testing.T) {
	s, repo, sess := newTestService(t)
	fill(t, s, sess)
	require.NoError(t, repo.Delete(2))

	c, _, err := s.Load(sess)
	require.NoError(t, err)
	err = s.RecomputeTotals(context.Background(), &c)
	assert.True(t, errors.Is(err, product.ErrNotFound))
}

// Any sequence of quantity changes and deletions leaves Total equal to the
// sum over positive lines, with slot count and listing ids untouched.
func TestTotalsHoldOverRandomEdits(t *testing.T) {
	s, repo, sess := newTestService(t)
	ctx := context.Background()
	fill(t, s, sess)
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 200; step++ {
		c, ok, err := s.Load(sess)
		require.NoError(t, err)
		if !ok {
			fill(t, s, sess)
			continue
		}
		idx := rng.Intn(len(c.OrderItems))
		if rng.Intn(4) == 0 {
			_, _, err = s.SoftDelete(ctx, sess, idx)
		} else {
			_, err = s.SetQuantity(ctx, sess, idx, rng.Intn(15)-2)
		}
		require.NoError(t, err)

		after, ok, err := s.Load(sess)
		require.NoError(t, err)
		if !ok {
			continue
		}
		require.Len(t, after.OrderItems, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{after.OrderItems[0].ListingID, after.OrderItems[1].ListingID, after.OrderItems[2].ListingID})
		assert.True(t, expectedTotal(t, repo, after).Equal(after.Total), "step %d", step)
	}
}

func TestSnapshotForDisplay(t *testing.T) {
	s, _, sess := newTestService(t)
	ctx := context.Background()
	fill(t, s, sess)
	_, _, err := s.SoftDelete(ctx, sess, 0)
	require.NoError(t, err)

	c, _, err := s.Load(sess)
	require.NoError(t, err)

	var items []DisplayItem
	for item, err := range s.SnapshotForDisplay(ctx, c) {
		require.NoError(t, err)
		items = append(items, item)
	}
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Index)
	assert.Equal(t, []int{0, 1, 2}, items[0].StockRange)
	assert.Len(t, items[1].StockRange, 10)
}

func TestLoad_Malformed(t *testing.T) {
	s, _, sess := newTestService(t)
	sess.Set(SessionKey, "{not json")
	_, _, err := s.Load(sess)
	assert.ErrorIs(t, err, ErrMalformed)
}
