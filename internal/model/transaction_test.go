package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestJournalLineAmount(t *testing.T) {
	tests := []struct {
		debit  string
		credit string
		want   string
	}{
		{"100.00", "0", "100.00"},
		{"0", "42.50", "42.50"},
		{"0", "0", "0"},
	}
	for _, tt := range tests {
		l := JournalLine{Debit: d(tt.debit), Credit: d(tt.credit)}
		assert.True(t, d(tt.want).Equal(l.Amount()), "Amount() for debit=%s credit=%s", tt.debit, tt.credit)
	}
}

func TestTransactionTotals(t *testing.T) {
	tx := Transaction{Lines: []JournalLine{
		{Debit: d("100.00")},
		{Debit: d("25.00")},
		{Credit: d("125.00")},
	}}

	debit, credit := tx.Totals()
	assert.True(t, d("125.00").Equal(debit))
	assert.True(t, d("125.00").Equal(credit))
	assert.True(t, tx.Imbalance().IsZero())
	assert.True(t, tx.Balanced(decimal.Zero))
}

func TestTransactionImbalance(t *testing.T) {
	tx := Transaction{Lines: []JournalLine{
		{Debit: d("100.00")},
		{Credit: d("99.99")},
	}}

	assert.True(t, d("0.01").Equal(tx.Imbalance()))
	assert.False(t, tx.Balanced(decimal.Zero))
	assert.True(t, tx.Balanced(d("0.01")))
}

func TestTransactionReversed(t *testing.T) {
	cash := uuid.New()
	sales := uuid.New()
	orig := Transaction{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		EntryNo:  "2025-01-001",
		Date:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Status:   StatusPosted,
		Lines: []JournalLine{
			{AccountID: cash, Description: "Cash", Debit: d("500.00")},
			{AccountID: sales, Description: "Sales", Credit: d("500.00")},
		},
		TotalDebit:  d("500.00"),
		TotalCredit: d("500.00"),
	}

	revDate := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rev := orig.Reversed(revDate, "Void: duplicate")

	assert.Equal(t, StatusDraft, rev.Status)
	assert.Equal(t, orig.TenantID, rev.TenantID)
	assert.Equal(t, revDate, rev.Date)
	assert.Equal(t, orig.ID, rev.ReversalOf)
	assert.Equal(t, SourceRef{Kind: "reversal", ID: orig.ID.String()}, rev.Reference)

	require.Len(t, rev.Lines, 2)
	assert.True(t, rev.Lines[0].Credit.Equal(d("500.00")), "cash leg swaps to credit")
	assert.True(t, rev.Lines[0].Debit.IsZero())
	assert.True(t, rev.Lines[1].Debit.Equal(d("500.00")), "sales leg swaps to debit")
	assert.True(t, rev.TotalDebit.Equal(d("500.00")))
	assert.True(t, rev.TotalCredit.Equal(d("500.00")))
}

func TestReversedNegatesOriginalAmount(t *testing.T) {
	orig := Transaction{
		ID: uuid.New(),
		Lines: []JournalLine{
			{Debit: d("92.00"), Currency: "EUR", OriginalAmount: d("100.00"), Rate: d("0.92")},
			{Credit: d("92.00")},
		},
	}

	rev := orig.Reversed(time.Now(), "Void: rate error")

	require.Len(t, rev.Lines, 2)
	assert.Equal(t, "EUR", rev.Lines[0].Currency)
	assert.True(t, rev.Lines[0].OriginalAmount.Equal(d("-100.00")))
	assert.True(t, rev.Lines[0].Rate.Equal(d("0.92")))
}
