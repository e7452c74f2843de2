package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// The bank feed CSV is the already-parsed form collaborators hand us:
// one row per statement line, amounts signed from the bank's
// perspective.

const (
	feedFields     = 4
	feedDateFormat = "2006-01-02"
	colExternalID  = 0
	colDate        = 1
	colAmount      = 2
	colDescription = 3
)

var feedHeader = []string{"external_id", "date", "amount", "description"}

// WriteBankFeed writes bank transactions as feed CSV rows.
func WriteBankFeed(w io.Writer, txns []model.BankTransaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(feedHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, t := range txns {
		row := []string{t.ExternalID, t.Date.Format(feedDateFormat), t.Amount.String(), t.Description}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing feed row %s: %w", t.ExternalID, err)
		}
	}
	return cw.Error()
}

// ReadBankFeed reads feed CSV rows into bank transactions.
func ReadBankFeed(r io.Reader) ([]model.BankTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = feedFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading bank feed CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var txns []model.BankTransaction
	for i, rec := range records[1:] {
		date, err := time.Parse(feedDateFormat, rec[colDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[colDate], err)
		}
		amount, err := decimal.NewFromString(rec[colAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount %q: %w", i+2, rec[colAmount], err)
		}
		txns = append(txns, model.BankTransaction{
			ExternalID:  rec[colExternalID],
			Date:        date,
			Amount:      amount,
			Description: rec[colDescription],
		})
	}
	return txns, nil
}
