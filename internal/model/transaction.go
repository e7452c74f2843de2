package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a journal transaction.
// Transitions are monotonic: draft -> posted -> voided.
type TransactionStatus string

const (
	StatusDraft  TransactionStatus = "draft"
	StatusPosted TransactionStatus = "posted"
	StatusVoided TransactionStatus = "voided"
)

// SourceRef points at the document a transaction originated from
// (invoice, bill, bank feed, closing run).
type SourceRef struct {
	Kind string
	ID   string
}

// JournalLine is one side of a double-entry. Exactly one of Debit and
// Credit is positive; both amounts are in the tenant base currency.
type JournalLine struct {
	ID          string // entry number plus leg suffix, e.g. "2025-01-001a"
	AccountID   uuid.UUID
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal

	// Original-currency details when the line was entered in a currency
	// other than the tenant base. Rate is the rate used to derive the
	// base-currency Debit/Credit above.
	Currency       string
	OriginalAmount decimal.Decimal
	Rate           decimal.Decimal
}

// Amount returns the line's magnitude regardless of side.
func (l JournalLine) Amount() decimal.Decimal {
	if l.Debit.IsZero() {
		return l.Credit
	}
	return l.Debit
}

// Transaction is a journal entry: at least two lines whose debits and
// credits balance. Lines are exclusively owned and never shared across
// transactions.
type Transaction struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	EntryNo     string // human-readable number, "YYYY-MM-NNN"
	Date        time.Time
	Description string
	Status      TransactionStatus
	Currency    string // entry currency; "" means tenant base
	Lines       []JournalLine
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Reference   SourceRef
	PeriodID    uuid.UUID

	// ReversedBy is set on a voided original, ReversalOf on the
	// reversing entry that voided it.
	ReversedBy uuid.UUID
	ReversalOf uuid.UUID

	Version int64
}

// Totals sums the lines' debits and credits.
func (t Transaction) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range t.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Imbalance returns |sum(debits) - sum(credits)|.
func (t Transaction) Imbalance() decimal.Decimal {
	d, c := t.Totals()
	return d.Sub(c).Abs()
}

// Balanced reports whether the entry balances within tolerance.
func (t Transaction) Balanced(tolerance decimal.Decimal) bool {
	return t.Imbalance().LessThanOrEqual(tolerance)
}

// Reversed returns a draft that undoes this transaction: every line's
// debit and credit swapped, dated the given date.
func (t Transaction) Reversed(date time.Time, description string) Transaction {
	rev := Transaction{
		TenantID:    t.TenantID,
		Date:        date,
		Description: description,
		Status:      StatusDraft,
		Currency:    t.Currency,
		Reference:   SourceRef{Kind: "reversal", ID: t.ID.String()},
		ReversalOf:  t.ID,
	}
	for _, l := range t.Lines {
		rev.Lines = append(rev.Lines, JournalLine{
			AccountID:      l.AccountID,
			Description:    l.Description,
			Debit:          l.Credit,
			Credit:         l.Debit,
			Currency:       l.Currency,
			OriginalAmount: l.OriginalAmount.Neg(),
			Rate:           l.Rate,
		})
	}
	rev.TotalDebit, rev.TotalCredit = rev.Totals()
	return rev
}
