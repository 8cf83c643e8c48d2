package product

import "github.com/shopspring/decimal"

// Product is a listing as seen by checkout: its price and what is left on the shelf.
type Product struct {
	ID         int             `json:"productId"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	NumInStock int             `json:"numInStock"`
}

// StockRange returns the selectable quantities [0, NumInStock).
func (p Product) StockRange() []int {
	if p.NumInStock <= 0 {
		return []int{}
	}
	out := make([]int, p.NumInStock)
	for i := range out {
		out[i] = i
	}
	return out
}
