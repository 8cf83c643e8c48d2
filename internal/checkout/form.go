package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wichananm65/checkout-backend/internal/destination"
	"github.com/wichananm65/checkout-backend/internal/order"
)

// ShippingForm is the info-stage payload. It binds from both urlencoded forms
// and JSON.
type ShippingForm struct {
	FullName       string `json:"full_name" form:"full_name"`
	StreetAddress1 string `json:"street_address1" form:"street_address1"`
	StreetAddress2 string `json:"street_address2" form:"street_address2"`
	TownOrCity     string `json:"town_or_city" form:"town_or_city"`
	County         string `json:"county" form:"county"`
	Postcode       string `json:"postcode" form:"postcode"`
	Country        string `json:"country" form:"country"`
}

var maxLengths = map[string]int{
	"full_name":       50,
	"street_address1": 80,
	"street_address2": 80,
	"town_or_city":    40,
	"county":          80,
	"postcode":        20,
}

var upper = cases.Upper(language.Und)

// FormFromOrder pre-fills the form with what the order already holds.
func FormFromOrder(o order.Order) ShippingForm {
	return ShippingForm(o.Shipping)
}

// Normalize trims every field and upper-cases postcode and country code.
func (f *ShippingForm) Normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.StreetAddress1 = strings.TrimSpace(f.StreetAddress1)
	f.StreetAddress2 = strings.TrimSpace(f.StreetAddress2)
	f.TownOrCity = strings.TrimSpace(f.TownOrCity)
	f.County = strings.TrimSpace(f.County)
	f.Postcode = upper.String(strings.TrimSpace(f.Postcode))
	f.Country = upper.String(strings.TrimSpace(f.Country))
}

// Validate returns field errors keyed by field name. The country must be a
// known shipping destination. A non-nil error means validation itself failed.
func (f ShippingForm) Validate(ctx context.Context, destinations destination.Repository) (map[string]string, error) {
	errs := map[string]string{}
	required := map[string]string{
		"full_name":       f.FullName,
		"street_address1": f.StreetAddress1,
		"town_or_city":    f.TownOrCity,
		"postcode":        f.Postcode,
		"country":         f.Country,
	}
	for field, v := range required {
		if v == "" {
			errs[field] = field + " is required"
		}
	}
	values := map[string]string{
		"full_name":       f.FullName,
		"street_address1": f.StreetAddress1,
		"street_address2": f.StreetAddress2,
		"town_or_city":    f.TownOrCity,
		"county":          f.County,
		"postcode":        f.Postcode,
	}
	for field, v := range values {
		if n := maxLengths[field]; utf8.RuneCountInString(v) > n {
			errs[field] = fmt.Sprintf("%s must be at most %d characters", field, n)
		}
	}

	if f.Country != "" {
		_, err := destinations.Get(ctx, f.Country)
		switch {
		case errors.Is(err, destination.ErrNotFound):
			errs["country"] = "we do not ship to this country"
		case err != nil:
			return nil, err
		}
	}
	return errs, nil
}

// Shipping converts the form into the order's shipping fields.
func (f ShippingForm) Shipping() order.Shipping {
	return order.Shipping(f)
}
