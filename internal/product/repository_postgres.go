package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	getProductByIDQuery = `
		SELECT id, title, price, num_in_stock
		FROM products
		WHERE id = $1
	`
	listProductsByIDsQuery = `
		SELECT id, title, price, num_in_stock
		FROM products
		WHERE id = ANY($1::int[])
		ORDER BY array_position($1::int[], id)
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, getProductByIDQuery, id).Scan(&p.ID, &p.Title, &p.Price, &p.NumInStock)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("query product %d: %w", id, err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []int) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	rows, err := r.db.QueryContext(ctx, listProductsByIDsQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.NumInStock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
