package destination

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepository implements Repository using Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, countryID string) (Destination, error) {
	var d Destination
	err := r.db.QueryRowContext(ctx,
		`SELECT country_id, name, shipping_price FROM shipping_destinations WHERE country_id = $1`, countryID).
		Scan(&d.CountryID, &d.Name, &d.ShippingPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return Destination{}, ErrNotFound
	}
	if err != nil {
		return Destination{}, fmt.Errorf("query destination %q: %w", countryID, err)
	}
	return d, nil
}

// List returns destinations ordered by name for the country selector.
func (r *PostgresRepository) List(ctx context.Context) ([]Destination, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT country_id, name, shipping_price FROM shipping_destinations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query destinations: %w", err)
	}
	defer rows.Close()

	out := make([]Destination, 0)
	for rows.Next() {
		var d Destination
		if err := rows.Scan(&d.CountryID, &d.Name, &d.ShippingPrice); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
