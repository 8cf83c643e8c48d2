package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	orderColumns = `id, reference, customer_id, paid, payment_session_id, full_name, street_address1, street_address2,
		town_or_city, county, postcode, country, created_at, updated_at`

	getOpenOrderQuery = `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 AND paid = FALSE`

	insertOpenOrderQuery = `INSERT INTO orders (reference, customer_id) VALUES ($1, $2)
		ON CONFLICT (customer_id) WHERE paid = FALSE DO NOTHING
		RETURNING ` + orderColumns

	updateShippingQuery = `UPDATE orders
		SET full_name = $1,
			street_address1 = $2,
			street_address2 = $3,
			town_or_city = $4,
			county = $5,
			postcode = $6,
			country = $7,
			updated_at = NOW()
		WHERE id = $8 AND paid = FALSE
		RETURNING ` + orderColumns

	setPaymentSessionQuery = `UPDATE orders SET payment_session_id = $1, updated_at = NOW()
		WHERE id = $2 AND paid = FALSE
		RETURNING ` + orderColumns

	listItemsQuery   = `SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY id`
	deleteItemsQuery = `DELETE FROM order_items WHERE order_id = $1`
	insertItemQuery  = `INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id`

	clearPaymentSessionQuery = `UPDATE orders SET payment_session_id = '' WHERE id = $1`

	lockOrderQuery      = `SELECT paid FROM orders WHERE id = $1 FOR UPDATE`
	markPaidQuery       = `UPDATE orders SET paid = TRUE, updated_at = NOW() WHERE id = $1 AND paid = FALSE`
	itemTotalsQuery     = `SELECT product_id, SUM(quantity) FROM order_items WHERE order_id = $1 GROUP BY product_id ORDER BY product_id`
	decrementStockQuery = `UPDATE products SET num_in_stock = num_in_stock - $1, updated_at = NOW()
		WHERE id = $2 AND num_in_stock >= $1`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (Order, error) {
	var (
		o       Order
		country sql.NullString
	)
	err := row.Scan(&o.ID, &o.Reference, &o.CustomerID, &o.Paid, &o.PaymentSessionID,
		&o.FullName, &o.StreetAddress1, &o.StreetAddress2, &o.TownOrCity, &o.County, &o.Postcode,
		&country, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Country = country.String
	return o, nil
}

func (r *PostgresRepository) GetOpen(ctx context.Context, customerID int) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, getOpenOrderQuery, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("query open order for customer %d: %w", customerID, err)
	}
	return o, nil
}

func (r *PostgresRepository) GetOrCreateOpen(ctx context.Context, customerID int) (Order, error) {
	o, err := r.GetOpen(ctx, customerID)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return o, err
	}

	o, err = scanOrder(r.db.QueryRowContext(ctx, insertOpenOrderQuery, uuid.NewString(), customerID))
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		// a concurrent request created it first
		return r.GetOpen(ctx, customerID)
	}
	if err != nil {
		return Order{}, fmt.Errorf("insert open order for customer %d: %w", customerID, err)
	}
	return o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresRepository) UpdateShipping(ctx context.Context, orderID int, s Shipping) (Order, error) {
	var country sql.NullString
	if s.Country != "" {
		country = sql.NullString{String: s.Country, Valid: true}
	}
	o, err := scanOrder(r.db.QueryRowContext(ctx, updateShippingQuery,
		s.FullName, s.StreetAddress1, s.StreetAddress2, s.TownOrCity, s.County, s.Postcode, country, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("update shipping of order %d: %w", orderID, err)
	}
	return o, nil
}

func (r *PostgresRepository) SetPaymentSession(ctx context.Context, orderID int, sessionID string) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, setPaymentSessionQuery, sessionID, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("set payment session of order %d: %w", orderID, err)
	}
	return o, nil
}

func (r *PostgresRepository) Items(ctx context.Context, orderID int) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, listItemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("query items of order %d: %w", orderID, err)
	}
	defer rows.Close()

	out := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ReplaceItems(ctx context.Context, orderID int, items []Item) ([]Item, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("replace items: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	if _, err := tx.ExecContext(ctx, deleteItemsQuery, orderID); err != nil {
		return nil, fmt.Errorf("replace items: delete: %w", err)
	}
	// a session opened for the old items no longer pays for this order
	if _, err := tx.ExecContext(ctx, clearPaymentSessionQuery, orderID); err != nil {
		return nil, fmt.Errorf("replace items: clear payment session: %w", err)
	}

	out := make([]Item, 0, len(items))
	for _, it := range items {
		it.OrderID = orderID
		if err := tx.QueryRowContext(ctx, insertItemQuery, orderID, it.ProductID, it.Quantity).Scan(&it.ID); err != nil {
			return nil, fmt.Errorf("replace items: insert product %d: %w", it.ProductID, err)
		}
		out = append(out, it)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("replace items: commit: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, orderID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finalize: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	var paid bool
	err = tx.QueryRowContext(ctx, lockOrderQuery, orderID).Scan(&paid)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("finalize: lock order: %w", err)
	}
	if paid {
		return ErrAlreadyPaid
	}

	if _, err := tx.ExecContext(ctx, markPaidQuery, orderID); err != nil {
		return fmt.Errorf("finalize: mark paid: %w", err)
	}

	type line struct{ productID, qty int }
	rows, err := tx.QueryContext(ctx, itemTotalsQuery, orderID)
	if err != nil {
		return fmt.Errorf("finalize: query items: %w", err)
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// products are locked in id order so concurrent finalizations cannot deadlock
	for _, l := range lines {
		res, err := tx.ExecContext(ctx, decrementStockQuery, l.qty, l.productID)
		if err != nil {
			return fmt.Errorf("finalize: decrement product %d: %w", l.productID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return &InventoryConflictError{ProductID: l.productID, Requested: l.qty}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finalize: commit: %w", err)
	}
	return nil
}
