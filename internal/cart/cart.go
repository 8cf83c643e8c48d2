package cart

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/checkout-backend/internal/product"
)

// SessionKey is where the cart lives in the visitor's session.
const SessionKey = "cart"

var (
	ErrIndexOutOfRange = errors.New("cart index out of range")
	ErrMalformed       = errors.New("cart session value is malformed")
)

// Line is one cart slot. The client addresses slots by position, so slots are
// never removed or reordered once appended; deleting a line zeroes it.
type Line struct {
	ListingID int `json:"listingId"`
	Quantity  int `json:"quantity"`
}

// Cart is the session cart. Total and Count are caches of OrderItems and are
// recomputed before every save.
type Cart struct {
	OrderItems []Line          `json:"orderItems"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
}

// IsEmpty reports whether no line has a positive quantity.
func (c Cart) IsEmpty() bool {
	for _, l := range c.OrderItems {
		if l.Quantity > 0 {
			return false
		}
	}
	return true
}

// QuantityResult is what a quantity change reports back to the cart page.
type QuantityResult struct {
	MaxNum int             `json:"max_num"`
	Title  string          `json:"title"`
	Total  decimal.Decimal `json:"total"`
}

// DisplayItem is one renderable cart row. Index is the slot position the
// client must send back for updates.
type DisplayItem struct {
	Index      int             `json:"index"`
	Product    product.Product `json:"product"`
	Quantity   int             `json:"quantity"`
	StockRange []int           `json:"stock_range"`
}
