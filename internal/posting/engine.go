package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tallybook-dev/tallybook/internal/audit"
	"github.com/tallybook-dev/tallybook/internal/currency"
	"github.com/tallybook-dev/tallybook/internal/id"
	"github.com/tallybook-dev/tallybook/internal/journal"
	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/store"
)

// Engine posts and voids journal transactions. A post is atomic: the
// transaction record, every balance delta, and the audit entries land
// together or not at all. Commits are serialized per tenant by the
// store, so overlapping posts never interleave their balance updates.
type Engine struct {
	store     store.Ledger
	converter *currency.Converter
	base      string // tenant base currency
	log       *zap.Logger
	now       func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(st store.Ledger, conv *currency.Converter, baseCurrency string, log *zap.Logger) *Engine {
	return &Engine{
		store:     st,
		converter: conv,
		base:      baseCurrency,
		log:       log,
		now:       time.Now,
	}
}

// txResolvers adapts a store.Tx to the validator's lookup interfaces.
type txResolvers struct {
	tx store.Tx
}

func (r txResolvers) Resolve(accountID uuid.UUID) (model.Account, error) {
	return r.tx.Account(accountID)
}

func (r txResolvers) PeriodFor(date time.Time) (model.Period, error) {
	return r.tx.PeriodFor(date)
}

// ledgerResolvers adapts the Ledger's read methods for side-effect-free
// validation outside a commit.
type ledgerResolvers struct {
	ctx      context.Context
	store    store.Ledger
	tenantID uuid.UUID
}

func (r ledgerResolvers) Resolve(accountID uuid.UUID) (model.Account, error) {
	return r.store.Account(r.ctx, r.tenantID, accountID)
}

func (r ledgerResolvers) PeriodFor(date time.Time) (model.Period, error) {
	return r.store.PeriodFor(r.ctx, r.tenantID, date)
}

// Validate runs the validation pipeline against current state without
// any side effects. Suggest flows call this before requesting approval.
func (e *Engine) Validate(ctx context.Context, draft model.Transaction) []error {
	converted, err := e.convertLines(draft)
	if err != nil {
		return []error{err}
	}
	return journal.Validate(converted, ledgerResolvers{ctx: ctx, store: e.store, tenantID: draft.TenantID}, ledgerResolvers{ctx: ctx, store: e.store, tenantID: draft.TenantID})
}

// Post converts any original-currency lines to base, validates the
// draft, and commits it: status becomes posted, every referenced
// account's running balance moves by its signed delta, and an audit
// entry records the before/after balances.
func (e *Engine) Post(ctx context.Context, draft model.Transaction, actor string) (model.Transaction, error) {
	if draft.Status != "" && draft.Status != model.StatusDraft {
		return model.Transaction{}, model.InvalidTransitionError{Entity: "transaction", From: string(draft.Status), To: string(model.StatusPosted)}
	}

	var posted model.Transaction
	err := e.store.Commit(ctx, draft.TenantID, func(tx store.Tx) error {
		var err error
		posted, err = e.PostInTx(tx, draft, actor)
		return err
	})
	if err != nil {
		return model.Transaction{}, err
	}

	e.log.Info("transaction posted",
		zap.String("tenant", posted.TenantID.String()),
		zap.String("entry", posted.EntryNo),
		zap.String("actor", actor),
		zap.String("total", posted.TotalDebit.StringFixed(2)),
	)
	return posted, nil
}

// PostInTx runs the full posting pipeline inside an open commit. A void
// posts its reversal in the same atomic step as the status change on
// the original, and a period close posts its closing entries in the
// same atomic step as the status transition.
func (e *Engine) PostInTx(tx store.Tx, draft model.Transaction, actor string) (model.Transaction, error) {
	converted, err := e.convertLines(draft)
	if err != nil {
		return model.Transaction{}, err
	}

	if errs := journal.Validate(converted, txResolvers{tx: tx}, txResolvers{tx: tx}); len(errs) > 0 {
		return model.Transaction{}, errors.Join(errs...)
	}

	period, err := tx.PeriodFor(converted.Date)
	if err != nil {
		return model.Transaction{}, err
	}

	seq, err := tx.NextEntrySeq(converted.Date.Year(), int(converted.Date.Month()))
	if err != nil {
		return model.Transaction{}, err
	}
	entryNo := id.EntryNo{Year: converted.Date.Year(), Month: int(converted.Date.Month()), Seq: seq}

	if converted.ID == uuid.Nil {
		converted.ID = uuid.New()
	}
	converted.EntryNo = entryNo.String()
	converted.Status = model.StatusPosted
	converted.PeriodID = period.ID
	for i := range converted.Lines {
		converted.Lines[i].ID = entryNo.Line(i)
	}

	if err := tx.SaveTransaction(converted); err != nil {
		return model.Transaction{}, err
	}

	// Apply balance deltas, one audit entry per touched account.
	deltas := make(map[uuid.UUID]decimal.Decimal)
	var order []uuid.UUID
	for _, l := range converted.Lines {
		if _, seen := deltas[l.AccountID]; !seen {
			order = append(order, l.AccountID)
		}
		acct, err := tx.Account(l.AccountID)
		if err != nil {
			return model.Transaction{}, err
		}
		deltas[l.AccountID] = deltas[l.AccountID].Add(acct.SignedDelta(l.Debit, l.Credit))
	}
	for _, accountID := range order {
		acct, err := tx.Account(accountID)
		if err != nil {
			return model.Transaction{}, err
		}
		before := acct.Balance
		after := before.Add(deltas[accountID])
		if err := tx.UpdateAccountBalance(accountID, acct.Version, after); err != nil {
			return model.Transaction{}, err
		}
		err = tx.AppendAudit(audit.Entry{
			Timestamp:  e.now().UTC(),
			TenantID:   converted.TenantID.String(),
			Actor:      actor,
			Action:     "post",
			EntityType: "account",
			EntityID:   acct.Code,
			Before:     before.StringFixed(2),
			After:      after.StringFixed(2),
			Reason:     converted.EntryNo,
		})
		if err != nil {
			return model.Transaction{}, err
		}
	}

	err = tx.AppendAudit(audit.Entry{
		Timestamp:  e.now().UTC(),
		TenantID:   converted.TenantID.String(),
		Actor:      actor,
		Action:     "post",
		EntityType: "transaction",
		EntityID:   converted.EntryNo,
		After:      string(model.StatusPosted),
	})
	if err != nil {
		return model.Transaction{}, err
	}
	return converted, nil
}

// Void reverses a posted transaction: a new entry with every line's
// debit and credit swapped is posted through the same pipeline, and the
// original is marked voided with a reference to the reversal. The
// original is never deleted. Voiding requires the original's period to
// still be open.
func (e *Engine) Void(ctx context.Context, tenantID, txID uuid.UUID, reason, actor string) (model.Transaction, error) {
	if reason == "" {
		return model.Transaction{}, fmt.Errorf("voiding a transaction requires a reason")
	}

	var reversal model.Transaction
	err := e.store.Commit(ctx, tenantID, func(tx store.Tx) error {
		orig, err := tx.Transaction(txID)
		if err != nil {
			return err
		}
		if orig.Status != model.StatusPosted {
			return model.InvalidTransitionError{Entity: "transaction", From: string(orig.Status), To: string(model.StatusVoided)}
		}

		period, err := tx.PeriodFor(orig.Date)
		if err != nil {
			return err
		}
		if period.Status != model.PeriodOpen {
			return model.PeriodClosedError{PeriodID: period.ID, Date: orig.Date, Status: period.Status}
		}

		reversal, err = e.PostInTx(tx, orig.Reversed(orig.Date, "Void: "+reason), actor)
		if err != nil {
			return err
		}

		orig.Status = model.StatusVoided
		orig.ReversedBy = reversal.ID
		if err := tx.UpdateTransaction(orig); err != nil {
			return err
		}

		return tx.AppendAudit(audit.Entry{
			Timestamp:  e.now().UTC(),
			TenantID:   tenantID.String(),
			Actor:      actor,
			Action:     "void",
			EntityType: "transaction",
			EntityID:   orig.EntryNo,
			Before:     string(model.StatusPosted),
			After:      string(model.StatusVoided),
			Reason:     reason,
		})
	})
	if err != nil {
		return model.Transaction{}, err
	}

	e.log.Info("transaction voided",
		zap.String("tenant", tenantID.String()),
		zap.String("original", txID.String()),
		zap.String("reversal", reversal.EntryNo),
		zap.String("actor", actor),
	)
	return reversal, nil
}

// convertLines resolves original-currency lines to base-currency
// amounts and recomputes the totals from the converted lines. Lines
// already in base pass through untouched.
func (e *Engine) convertLines(draft model.Transaction) (model.Transaction, error) {
	out := draft
	out.Lines = make([]model.JournalLine, len(draft.Lines))
	copy(out.Lines, draft.Lines)

	for i, l := range out.Lines {
		if l.Currency == "" || l.Currency == e.base {
			continue
		}

		rate := l.Rate
		if rate.IsZero() {
			var err error
			rate, err = e.converter.Rate(l.Currency, e.base, draft.Date)
			if err != nil {
				return model.Transaction{}, err
			}
		}

		if l.OriginalAmount.IsZero() {
			out.Lines[i].OriginalAmount = l.Amount()
		}
		foreign := out.Lines[i].OriginalAmount.Abs()
		converted := currency.Convert(foreign, rate, e.base)
		if l.Debit.IsPositive() {
			out.Lines[i].Debit = converted
		} else if l.Credit.IsPositive() {
			out.Lines[i].Credit = converted
		}
		out.Lines[i].Rate = rate
	}

	out.TotalDebit, out.TotalCredit = out.Totals()
	return out, nil
}
