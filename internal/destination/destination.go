package destination

import "github.com/shopspring/decimal"

// Destination is a country we ship to and what shipping there costs.
type Destination struct {
	CountryID     string          `json:"countryId"`
	Name          string          `json:"name"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
}
