package currency

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

const (
	numFields    = 4
	dateFormat   = "2006-01-02"
	colFrom      = 0
	colTo        = 1
	colEffective = 2
	colRate      = 3
)

var header = []string{"from", "to", "effective", "rate"}

// ReadRates reads an exchange-rate history CSV.
func ReadRates(r io.Reader) ([]model.ExchangeRate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rates CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var rates []model.ExchangeRate
	for i, rec := range records[1:] {
		effective, err := time.Parse(dateFormat, rec[colEffective])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing effective %q: %w", i+2, rec[colEffective], err)
		}
		rate, err := decimal.NewFromString(rec[colRate])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing rate %q: %w", i+2, rec[colRate], err)
		}
		rates = append(rates, model.ExchangeRate{
			From:      rec[colFrom],
			To:        rec[colTo],
			Effective: effective,
			Rate:      rate,
		})
	}
	return rates, nil
}

// WriteRates writes an exchange-rate history CSV.
func WriteRates(w io.Writer, rates []model.ExchangeRate) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rates {
		row := []string{r.From, r.To, r.Effective.Format(dateFormat), r.Rate.String()}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}
