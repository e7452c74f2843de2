package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the conversion rate between two currencies effective
// from a given date. Rates are immutable once recorded; lookups resolve
// to the most recent rate with Effective <= the target date.
type ExchangeRate struct {
	From      string
	To        string
	Effective time.Time
	Rate      decimal.Decimal
}
