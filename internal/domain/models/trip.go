package models

import "github.com/shopspring/decimal"

// Trip is the read-only catalogue entry a booking is priced from.
type Trip struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Destination string          `json:"destination"`
	PriceAdult  decimal.Decimal `json:"price_adult"`
	PriceChild  decimal.Decimal `json:"price_child"`
	Currency    string          `json:"currency"`
	Active      bool            `json:"active"`
}

// Price returns the total for the given party size.
func (t Trip) Price(adults, children int) decimal.Decimal {
	return t.PriceAdult.Mul(decimal.NewFromInt(int64(adults))).
		Add(t.PriceChild.Mul(decimal.NewFromInt(int64(children))))
}
