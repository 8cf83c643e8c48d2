package product

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productCols = []string{"id", "title", "price", "num_in_stock"}

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestGetByID_ScansDecimalPrice(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM products").WithArgs(7).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(7, "Cat Sweater", "12.50", 4))

	p, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Cat Sweater", p.Title)
	assert.Equal(t, 4, p.NumInStock)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("12.50")), p.Price.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM products").WithArgs(9).WillReturnRows(sqlmock.NewRows(productCols))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByIDs(t *testing.T) {
	repo, mock := newMock(t)

	out, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out, "empty ids short-circuit")

	rows := sqlmock.NewRows(productCols).
		AddRow(2, "B", "2.00", 1).
		AddRow(1, "A", "1.00", 3)
	mock.ExpectQuery("WHERE id = ANY").WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)

	out, err = repo.ListByIDs(context.Background(), []int{2, 1})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].ID)
	assert.Equal(t, 1, out[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInMemoryDecrementAll_AllOrNothing(t *testing.T) {
	repo := NewInMemoryRepository([]Product{
		{ID: 1, Title: "A", NumInStock: 5},
		{ID: 2, Title: "B", NumInStock: 1},
	})
	ctx := context.Background()

	id, ok := repo.DecrementAll(map[int]int{1: 2, 2: 2})
	assert.False(t, ok)
	assert.Equal(t, 2, id)
	a, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, a.NumInStock, "stock untouched after a conflict")

	_, ok = repo.DecrementAll(map[int]int{1: 2, 2: 1})
	require.True(t, ok)
	a, err = repo.GetByID(ctx, 1)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, a.NumInStock)
	assert.Equal(t, 0, b.NumInStock)
}

func TestStockRange(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, Product{NumInStock: 3}.StockRange())
	assert.Empty(t, Product{NumInStock: 0}.StockRange())
}
