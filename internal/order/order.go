package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrAlreadyPaid       = errors.New("order already paid")
	ErrMissingProduct    = errors.New("cart references a product that no longer exists")
	ErrInventoryConflict = errors.New("insufficient stock to finalize order")
)

// Order is a checkout attempt. A customer has at most one unpaid Order at a time.
type Order struct {
	ID         int    `json:"orderId"`
	Reference  string `json:"reference"`
	CustomerID int    `json:"customerId"`
	Paid       bool   `json:"paid"`
	// PaymentSessionID is the provider session opened for the current items.
	// It is cleared whenever the items are rebuilt.
	PaymentSessionID string `json:"paymentSessionId,omitempty"`
	Shipping
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Shipping holds the delivery details collected on the info stage.
type Shipping struct {
	FullName       string `json:"full_name"`
	StreetAddress1 string `json:"street_address1"`
	StreetAddress2 string `json:"street_address2"`
	TownOrCity     string `json:"town_or_city"`
	County         string `json:"county"`
	Postcode       string `json:"postcode"`
	Country        string `json:"country"`
}

// Complete reports whether every required delivery field is set.
func (s Shipping) Complete() bool {
	return s.FullName != "" && s.StreetAddress1 != "" && s.TownOrCity != "" && s.Postcode != "" && s.Country != ""
}

// Item is a persisted order line, rebuilt from the session cart on every reconciliation.
type Item struct {
	ID        int `json:"id"`
	OrderID   int `json:"orderId"`
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// InventoryConflictError reports the product that could not cover its order line.
type InventoryConflictError struct {
	ProductID int
	Requested int
}

func (e *InventoryConflictError) Error() string {
	return fmt.Sprintf("%v: product %d cannot cover quantity %d", ErrInventoryConflict, e.ProductID, e.Requested)
}

func (e *InventoryConflictError) Unwrap() error { return ErrInventoryConflict }
