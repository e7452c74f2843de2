package currency

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/journal"
	"github.com/tallybook-dev/tallybook/internal/model"
)

// Position is one open foreign-currency balance to revalue: the amount
// still held in the original currency and the base-currency value it is
// currently carried at.
type Position struct {
	AccountID      uuid.UUID
	Currency       string
	OriginalAmount decimal.Decimal
	BaseAmount     decimal.Decimal
}

// GainLossAccounts names the accounts revaluation entries post into.
type GainLossAccounts struct {
	FXGain uuid.UUID
	FXLoss uuid.UUID
}

// Revalue computes period-end unrealized gain/loss for each open
// foreign-currency position and returns one balanced draft per
// position. Differences below the materiality tolerance are skipped.
// The drafts are ordinary candidates: they go through the posting
// engine and its validation like any other entry.
func (c *Converter) Revalue(tenantID uuid.UUID, base string, positions []Position, asOf time.Time, tolerance decimal.Decimal, accounts GainLossAccounts) ([]model.Transaction, error) {
	var drafts []model.Transaction
	for _, pos := range positions {
		rate, err := c.Rate(pos.Currency, base, asOf)
		if err != nil {
			return nil, err
		}

		revalued := Convert(pos.OriginalAmount, rate, base)
		delta := revalued.Sub(pos.BaseAmount)
		if delta.Abs().LessThan(tolerance) {
			continue
		}

		desc := fmt.Sprintf("Revaluation of %s position at %s", pos.Currency, asOf.Format("2006-01-02"))
		ref := model.SourceRef{Kind: "revaluation", ID: pos.AccountID.String()}

		// The adjustment is a base-currency delta on the carrying value;
		// the position's original-currency amount is unchanged, so the
		// lines carry no currency of their own.
		var lines []journal.DraftLine
		if delta.IsPositive() {
			lines = []journal.DraftLine{
				{AccountID: pos.AccountID, Description: desc, Debit: delta},
				{AccountID: accounts.FXGain, Description: desc, Credit: delta},
			}
		} else {
			lines = []journal.DraftLine{
				{AccountID: accounts.FXLoss, Description: desc, Debit: delta.Neg()},
				{AccountID: pos.AccountID, Description: desc, Credit: delta.Neg()},
			}
		}
		drafts = append(drafts, journal.NewDraft(tenantID, asOf, desc, ref, lines))
	}
	return drafts, nil
}
