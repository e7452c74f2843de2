package journal

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// BalanceTolerance is the maximum allowed |debits - credits| on an
// entry, in currency minor units.
var BalanceTolerance = decimal.RequireFromString("0.01")

// AccountResolver looks up accounts referenced by journal lines.
type AccountResolver interface {
	Resolve(accountID uuid.UUID) (model.Account, error)
}

// PeriodResolver maps a transaction date to its fiscal period.
type PeriodResolver interface {
	PeriodFor(date time.Time) (model.Period, error)
}

// Validate runs the validation pipeline over a draft in fixed rule
// order: line count, balance, empty lines, dual-sided lines, account
// validity, period lock. All failures are collected rather than
// stopping at the first; the slice order follows the rule order, so
// callers that only look at the head see the same rule a fail-fast
// pipeline would report.
//
// Validate is pure: it never mutates the draft or any looked-up state.
func Validate(draft model.Transaction, accounts AccountResolver, periods PeriodResolver) []error {
	var errs []error

	if len(draft.Lines) < 2 {
		errs = append(errs, model.TooFewLinesError{Count: len(draft.Lines)})
	}

	if diff := draft.Imbalance(); diff.GreaterThan(BalanceTolerance) {
		errs = append(errs, model.UnbalancedError{Difference: diff})
	}

	for i, l := range draft.Lines {
		if l.Debit.IsZero() && l.Credit.IsZero() {
			errs = append(errs, model.EmptyLineError{Index: i})
		}
	}

	for i, l := range draft.Lines {
		if l.Debit.IsPositive() && l.Credit.IsPositive() {
			errs = append(errs, model.DualSidedLineError{Index: i})
		}
	}

	for _, l := range draft.Lines {
		acct, err := accounts.Resolve(l.AccountID)
		switch {
		case errors.Is(err, model.ErrNotFound):
			errs = append(errs, model.InvalidAccountError{Code: l.AccountID.String(), Reason: model.AccountReasonNotFound})
			continue
		case err != nil:
			errs = append(errs, err)
			continue
		}
		if !acct.Active {
			errs = append(errs, model.InvalidAccountError{Code: acct.Code, Reason: model.AccountReasonInactive})
		}
		if acct.IsHeader {
			errs = append(errs, model.InvalidAccountError{Code: acct.Code, Reason: model.AccountReasonHeader})
		}
	}

	period, err := periods.PeriodFor(draft.Date)
	switch {
	case errors.Is(err, model.ErrNotFound):
		errs = append(errs, model.PeriodClosedError{Date: draft.Date})
	case err != nil:
		errs = append(errs, err)
	case period.Status != model.PeriodOpen:
		errs = append(errs, model.PeriodClosedError{PeriodID: period.ID, Date: draft.Date, Status: period.Status})
	}

	return errs
}
