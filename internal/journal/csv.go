package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/id"
	"github.com/tallybook-dev/tallybook/internal/model"
)

// The journal CSV stores one row per line; transaction-level fields are
// repeated on every line of the entry and regrouped on read.

const (
	numFields     = 17
	dateFormat    = "2006-01-02"
	colLineID     = 0
	colTxID       = 1
	colTenant     = 2
	colDate       = 3
	colAccountID  = 4
	colDesc       = 5
	colDebit      = 6
	colCredit     = 7
	colCurrency   = 8
	colOrigAmount = 9
	colRate       = 10
	colStatus     = 11
	colRefKind    = 12
	colRefID      = 13
	colPeriodID   = 14
	colReversalOf = 15
	colReversedBy = 16
)

var header = []string{
	"line_id", "tx_id", "tenant_id", "date", "account_id", "description",
	"debit", "credit", "currency", "original_amount", "rate", "status",
	"ref_kind", "ref_id", "period_id", "reversal_of", "reversed_by",
}

// WriteTransactions writes transactions as journal CSV rows.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, tx := range txns {
		for i, line := range tx.Lines {
			if err := cw.Write(marshalRow(tx, line)); err != nil {
				return fmt.Errorf("writing line %d of %s: %w", i, tx.EntryNo, err)
			}
		}
	}
	return cw.Error()
}

// ReadTransactions reads journal CSV rows and regroups them into
// transactions, preserving line order within each entry.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var txns []model.Transaction
	index := make(map[uuid.UUID]int)
	for i, rec := range records[1:] {
		tx, line, err := unmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		at, seen := index[tx.ID]
		if !seen {
			index[tx.ID] = len(txns)
			txns = append(txns, tx)
			at = len(txns) - 1
		}
		txns[at].Lines = append(txns[at].Lines, line)
	}

	for i := range txns {
		txns[i].TotalDebit, txns[i].TotalCredit = txns[i].Totals()
	}
	return txns, nil
}

func marshalRow(tx model.Transaction, line model.JournalLine) []string {
	row := make([]string, numFields)
	row[colLineID] = line.ID
	row[colTxID] = tx.ID.String()
	row[colTenant] = tx.TenantID.String()
	row[colDate] = tx.Date.Format(dateFormat)
	row[colAccountID] = line.AccountID.String()
	row[colDesc] = line.Description
	if !line.Debit.IsZero() {
		row[colDebit] = line.Debit.StringFixed(2)
	}
	if !line.Credit.IsZero() {
		row[colCredit] = line.Credit.StringFixed(2)
	}
	row[colCurrency] = line.Currency
	if !line.OriginalAmount.IsZero() {
		row[colOrigAmount] = line.OriginalAmount.String()
	}
	if !line.Rate.IsZero() {
		row[colRate] = line.Rate.String()
	}
	row[colStatus] = string(tx.Status)
	row[colRefKind] = tx.Reference.Kind
	row[colRefID] = tx.Reference.ID
	if tx.PeriodID != uuid.Nil {
		row[colPeriodID] = tx.PeriodID.String()
	}
	if tx.ReversalOf != uuid.Nil {
		row[colReversalOf] = tx.ReversalOf.String()
	}
	if tx.ReversedBy != uuid.Nil {
		row[colReversedBy] = tx.ReversedBy.String()
	}
	return row
}

func unmarshalRow(record []string) (model.Transaction, model.JournalLine, error) {
	if len(record) != numFields {
		return model.Transaction{}, model.JournalLine{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	txID, err := uuid.Parse(record[colTxID])
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, fmt.Errorf("parsing tx_id %q: %w", record[colTxID], err)
	}
	tenantID, err := uuid.Parse(record[colTenant])
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, fmt.Errorf("parsing tenant_id %q: %w", record[colTenant], err)
	}
	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	accountID, err := uuid.Parse(record[colAccountID])
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, fmt.Errorf("parsing account_id %q: %w", record[colAccountID], err)
	}

	parseDec := func(col int, name string) (decimal.Decimal, error) {
		if record[col] == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(record[col])
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing %s %q: %w", name, record[col], err)
		}
		return d, nil
	}
	debit, err := parseDec(colDebit, "debit")
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, err
	}
	credit, err := parseDec(colCredit, "credit")
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, err
	}
	origAmount, err := parseDec(colOrigAmount, "original_amount")
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, err
	}
	rate, err := parseDec(colRate, "rate")
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, err
	}

	parseUUID := func(col int, name string) (uuid.UUID, error) {
		if record[col] == "" {
			return uuid.Nil, nil
		}
		u, err := uuid.Parse(record[col])
		if err != nil {
			return uuid.Nil, fmt.Errorf("parsing %s %q: %w", name, record[col], err)
		}
		return u, nil
	}
	periodID, err := parseUUID(colPeriodID, "period_id")
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, err
	}
	reversalOf, err := parseUUID(colReversalOf, "reversal_of")
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, err
	}
	reversedBy, err := parseUUID(colReversedBy, "reversed_by")
	if err != nil {
		return model.Transaction{}, model.JournalLine{}, err
	}

	tx := model.Transaction{
		ID:          txID,
		TenantID:    tenantID,
		EntryNo:     id.Base(record[colLineID]),
		Date:        date,
		Description: record[colDesc],
		Status:      model.TransactionStatus(record[colStatus]),
		Reference:   model.SourceRef{Kind: record[colRefKind], ID: record[colRefID]},
		PeriodID:    periodID,
		ReversalOf:  reversalOf,
		ReversedBy:  reversedBy,
	}
	line := model.JournalLine{
		ID:             record[colLineID],
		AccountID:      accountID,
		Description:    record[colDesc],
		Debit:          debit,
		Credit:         credit,
		Currency:       record[colCurrency],
		OriginalAmount: origAmount,
		Rate:           rate,
	}
	return tx, line, nil
}
