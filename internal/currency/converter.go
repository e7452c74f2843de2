package currency

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

type pair struct {
	from string
	to   string
}

// Converter resolves exchange rates and converts amounts. Rates are
// supplied up front as already-fetched (from, to, date, rate) tuples;
// the converter never calls out to a rate feed.
type Converter struct {
	// rates per pair, sorted by effective date ascending.
	rates map[pair][]model.ExchangeRate
}

// NewConverter builds a Converter from a rate history.
func NewConverter(rates []model.ExchangeRate) *Converter {
	c := &Converter{rates: make(map[pair][]model.ExchangeRate)}
	for _, r := range rates {
		k := pair{from: r.From, to: r.To}
		c.rates[k] = append(c.rates[k], r)
	}
	for k := range c.rates {
		rs := c.rates[k]
		sort.Slice(rs, func(i, j int) bool { return rs[i].Effective.Before(rs[j].Effective) })
	}
	return c
}

// Rate returns the conversion rate from one currency to another on a
// date: the most recent rate effective on or before the date. If no
// direct rate exists, the inverse of the reverse-direction rate is
// used. Rates are never interpolated or extrapolated forward.
func (c *Converter) Rate(from, to string, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if r, ok := c.lookup(pair{from: from, to: to}, date); ok {
		return r, nil
	}
	if r, ok := c.lookup(pair{from: to, to: from}, date); ok {
		return decimal.NewFromInt(1).DivRound(r, 12), nil
	}
	return decimal.Zero, model.RateUnavailableError{From: from, To: to, Date: date}
}

func (c *Converter) lookup(k pair, date time.Time) (decimal.Decimal, bool) {
	rs := c.rates[k]
	// Last rate with Effective <= date.
	i := sort.Search(len(rs), func(i int) bool { return rs[i].Effective.After(date) })
	if i == 0 {
		return decimal.Zero, false
	}
	return rs[i-1].Rate, true
}

// Convert applies a rate to an amount and rounds half-to-even to the
// minor-unit precision of the target currency.
func Convert(amount, rate decimal.Decimal, targetCurrency string) decimal.Decimal {
	return amount.Mul(rate).RoundBank(MinorUnits(targetCurrency))
}

// MinorUnits returns the decimal precision of a currency's minor unit.
func MinorUnits(code string) int32 {
	switch code {
	case "JPY", "KRW", "VND":
		return 0
	case "BHD", "KWD", "OMR", "TND":
		return 3
	default:
		return 2
	}
}
