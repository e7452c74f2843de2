package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// DraftLine is one side of a draft entry before ids are assigned.
type DraftLine struct {
	AccountID      uuid.UUID
	Description    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Currency       string
	OriginalAmount decimal.Decimal
	Rate           decimal.Decimal
}

// NewDraft builds a draft transaction from lines, computing totals.
// Line and transaction ids are assigned by the posting engine.
func NewDraft(tenantID uuid.UUID, date time.Time, description string, ref model.SourceRef, lines []DraftLine) model.Transaction {
	tx := model.Transaction{
		TenantID:    tenantID,
		Date:        date,
		Description: description,
		Status:      model.StatusDraft,
		Reference:   ref,
	}
	for _, l := range lines {
		tx.Lines = append(tx.Lines, model.JournalLine{
			AccountID:      l.AccountID,
			Description:    l.Description,
			Debit:          l.Debit,
			Credit:         l.Credit,
			Currency:       l.Currency,
			OriginalAmount: l.OriginalAmount,
			Rate:           l.Rate,
		})
	}
	tx.TotalDebit, tx.TotalCredit = tx.Totals()
	return tx
}
