package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tallybook-dev/tallybook/internal/audit"
	"github.com/tallybook-dev/tallybook/internal/journal"
	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/store"
)

// Check is one pre-close precondition, evaluated by the caller.
// Name identifies the condition that failed when Passed is false,
// e.g. "unposted_entries_exist".
type Check struct {
	Name   string
	Passed bool
}

// Approval is the caller-supplied authorization decision gating a
// period reopen. The approval workflow itself lives outside the engine.
type Approval struct {
	Token   string
	Granted bool
}

// Poster posts draft transactions; implemented by the posting engine.
// PostInTx posts inside an already-open commit, so a period close can
// make its closing entries and status transition one atomic step.
type Poster interface {
	Post(ctx context.Context, draft model.Transaction, actor string) (model.Transaction, error)
	PostInTx(tx store.Tx, draft model.Transaction, actor string) (model.Transaction, error)
}

// SummaryAccounts names the accounts closing entries flow through.
type SummaryAccounts struct {
	IncomeSummary    uuid.UUID
	RetainedEarnings uuid.UUID
}

// Manager drives the fiscal period state machine. Transitions are
// compare-and-swap on the period's version, so a racing close and post
// resolve to one winner instead of silently interleaving.
type Manager struct {
	store  store.Ledger
	poster Poster
	log    *zap.Logger
}

// NewManager creates a Manager.
func NewManager(st store.Ledger, poster Poster, log *zap.Logger) *Manager {
	return &Manager{store: st, poster: poster, log: log}
}

// OpenPeriod moves a future period to open. Allowed only when the prior
// period (by number) is already open or closed, so periods open in
// order.
func (m *Manager) OpenPeriod(ctx context.Context, tenantID, periodID uuid.UUID, actor string) error {
	p, err := m.store.Period(ctx, tenantID, periodID)
	if err != nil {
		return err
	}
	if p.Status != model.PeriodFuture {
		return model.InvalidTransitionError{Entity: "period", From: string(p.Status), To: string(model.PeriodOpen)}
	}

	if prior, ok, err := m.priorPeriod(ctx, tenantID, p); err != nil {
		return err
	} else if ok && prior.Status == model.PeriodFuture {
		return fmt.Errorf("cannot open period %d while period %d is still future", p.Number, prior.Number)
	}

	return m.transition(ctx, p, model.PeriodOpen, actor, "")
}

// ClosePeriod verifies the caller-supplied pre-close checklist,
// generates closing entries for temporary accounts, and sets the period
// closed. Every failed check is reported, not just the first.
//
// The balance snapshot, the closing entries, the status flip, and the
// audit record run in one commit, so the per-tenant lock spans the
// whole close: a posting racing the close either lands before the
// snapshot and is swept into the closing entries, or hits the closed
// period and is rejected.
func (m *Manager) ClosePeriod(ctx context.Context, tenantID, periodID uuid.UUID, actor string, checks []Check, summary SummaryAccounts) error {
	p, err := m.store.Period(ctx, tenantID, periodID)
	if err != nil {
		return err
	}
	if p.Status != model.PeriodOpen {
		return model.InvalidTransitionError{Entity: "period", From: string(p.Status), To: string(model.PeriodClosed)}
	}

	var failed []string
	for _, c := range checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	if len(failed) > 0 {
		return model.PreCloseChecksFailedError{Failed: failed}
	}

	from := p.Status
	err = m.store.Commit(ctx, tenantID, func(tx store.Tx) error {
		if err := m.postClosingEntries(tx, tenantID, p, actor, summary); err != nil {
			return err
		}
		p.Status = model.PeriodClosed
		if err := tx.UpdatePeriod(p); err != nil {
			return err
		}
		return tx.AppendAudit(audit.Entry{
			Timestamp:  time.Now().UTC(),
			TenantID:   tenantID.String(),
			Actor:      actor,
			Action:     fmt.Sprintf("%s_period", model.PeriodClosed),
			EntityType: "period",
			EntityID:   p.ID.String(),
			Before:     string(from),
			After:      string(model.PeriodClosed),
		})
	})
	if err != nil {
		return err
	}

	m.log.Info("period transition",
		zap.String("tenant", tenantID.String()),
		zap.Int("period", p.Number),
		zap.String("from", string(from)),
		zap.String("to", string(model.PeriodClosed)),
		zap.String("actor", actor),
	)
	return nil
}

// Reopen moves a closed period back to open. It requires a non-empty
// reason and a granted approval, and always leaves an audit record.
func (m *Manager) Reopen(ctx context.Context, tenantID, periodID uuid.UUID, actor, reason string, approval Approval) error {
	if reason == "" {
		return fmt.Errorf("reopening a period requires a reason")
	}
	if !approval.Granted {
		return fmt.Errorf("reopening a period requires an approval token")
	}

	p, err := m.store.Period(ctx, tenantID, periodID)
	if err != nil {
		return err
	}
	if p.Status != model.PeriodClosed {
		return model.InvalidTransitionError{Entity: "period", From: string(p.Status), To: string(model.PeriodOpen)}
	}

	m.log.Warn("period reopened",
		zap.String("tenant", tenantID.String()),
		zap.String("period", periodID.String()),
		zap.String("actor", actor),
		zap.String("reason", reason),
		zap.String("approval_token", approval.Token),
	)
	return m.transition(ctx, p, model.PeriodOpen, actor, reason)
}

// CloseFiscalYear closes a year whose periods are all closed and
// returns the opening-balance draft for balance-sheet accounts in the
// successor year. The draft seeds the successor ledger; it is not
// posted here because running balances already carry forward within a
// single continuous ledger.
func (m *Manager) CloseFiscalYear(ctx context.Context, tenantID, yearID uuid.UUID, actor string) (model.Transaction, error) {
	years, err := m.store.FiscalYears(ctx, tenantID)
	if err != nil {
		return model.Transaction{}, err
	}

	var fy model.FiscalYear
	found := false
	for _, y := range years {
		if y.ID == yearID {
			fy, found = y, true
			break
		}
	}
	if !found {
		return model.Transaction{}, fmt.Errorf("fiscal year %s: %w", yearID, model.ErrNotFound)
	}
	if fy.Status == model.PeriodClosed {
		return model.Transaction{}, model.InvalidTransitionError{Entity: "fiscal_year", From: string(fy.Status), To: string(model.PeriodClosed)}
	}
	if !fy.AllPeriodsClosed() {
		return model.Transaction{}, model.PreCloseChecksFailedError{Failed: []string{"open_periods_remain"}}
	}

	var opening model.Transaction
	err = m.store.Commit(ctx, tenantID, func(tx store.Tx) error {
		accounts, err := tx.Accounts()
		if err != nil {
			return err
		}
		opening = openingBalanceDraft(accounts, tenantID, fy)

		fy.Status = model.PeriodClosed
		if err := tx.UpdateFiscalYear(fy); err != nil {
			return err
		}
		return tx.AppendAudit(audit.Entry{
			Timestamp:  time.Now().UTC(),
			TenantID:   tenantID.String(),
			Actor:      actor,
			Action:     "close_fiscal_year",
			EntityType: "fiscal_year",
			EntityID:   yearID.String(),
			Before:     string(model.PeriodOpen),
			After:      string(model.PeriodClosed),
		})
	})
	if err != nil {
		return model.Transaction{}, err
	}

	m.log.Info("fiscal year closed",
		zap.String("tenant", tenantID.String()),
		zap.Int("year", fy.Year),
	)
	return opening, nil
}

func (m *Manager) priorPeriod(ctx context.Context, tenantID uuid.UUID, p model.Period) (model.Period, bool, error) {
	years, err := m.store.FiscalYears(ctx, tenantID)
	if err != nil {
		return model.Period{}, false, err
	}
	for _, fy := range years {
		if fy.ID != p.FiscalYearID {
			continue
		}
		for _, cand := range fy.Periods {
			if cand.Number == p.Number-1 {
				return cand, true, nil
			}
		}
	}
	return model.Period{}, false, nil
}

// transition applies a CAS status change, records it in the audit
// trail, and logs it. The status change and its audit entry land in the
// same commit.
func (m *Manager) transition(ctx context.Context, p model.Period, to model.PeriodStatus, actor, reason string) error {
	from := p.Status
	p.Status = to
	err := m.store.Commit(ctx, p.TenantID, func(tx store.Tx) error {
		if err := tx.UpdatePeriod(p); err != nil {
			return err
		}
		return tx.AppendAudit(audit.Entry{
			Timestamp:  time.Now().UTC(),
			TenantID:   p.TenantID.String(),
			Actor:      actor,
			Action:     fmt.Sprintf("%s_period", to),
			EntityType: "period",
			EntityID:   p.ID.String(),
			Before:     string(from),
			After:      string(to),
			Reason:     reason,
		})
	})
	if err != nil {
		return err
	}

	m.log.Info("period transition",
		zap.String("tenant", p.TenantID.String()),
		zap.Int("period", p.Number),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor),
	)
	return nil
}

// postClosingEntries zeroes temporary (revenue/expense) balances into
// the income summary account and rolls the net into retained earnings.
// It runs inside the close commit, so the balances it sweeps are the
// balances the period closes with.
func (m *Manager) postClosingEntries(tx store.Tx, tenantID uuid.UUID, p model.Period, actor string, summary SummaryAccounts) error {
	accounts, err := tx.Accounts()
	if err != nil {
		return err
	}

	var lines []journal.DraftLine
	net := decimal.Zero // positive = net income
	for _, a := range accounts {
		if !a.Type.Temporary() || a.IsHeader || a.Balance.IsZero() {
			continue
		}
		desc := fmt.Sprintf("Close %s", a.Name)
		if a.Type == model.AccountTypeRevenue {
			// Revenue carries a credit balance; debit it away.
			lines = append(lines, sideLine(a.ID, desc, a.Balance))
			net = net.Add(a.Balance)
		} else {
			// Expense carries a debit balance; credit it away.
			lines = append(lines, sideLine(a.ID, desc, a.Balance.Neg()))
			net = net.Sub(a.Balance)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	ref := model.SourceRef{Kind: "closing", ID: p.ID.String()}

	// Entry 1: temporary accounts into income summary.
	first := append(lines, sideLine(summary.IncomeSummary, "Income summary", net.Neg()))
	draft := journal.NewDraft(tenantID, p.End, fmt.Sprintf("Closing entries for %s", p.Name), ref, first)
	if _, err := m.poster.PostInTx(tx, draft, actor); err != nil {
		return fmt.Errorf("posting closing entry: %w", err)
	}

	// Entry 2: income summary into retained earnings.
	if !net.IsZero() {
		second := []journal.DraftLine{
			sideLine(summary.IncomeSummary, "Income summary", net),
			sideLine(summary.RetainedEarnings, "Retained earnings", net.Neg()),
		}
		draft := journal.NewDraft(tenantID, p.End, fmt.Sprintf("Transfer net income for %s", p.Name), ref, second)
		if _, err := m.poster.PostInTx(tx, draft, actor); err != nil {
			return fmt.Errorf("posting retained earnings entry: %w", err)
		}
	}
	return nil
}

// sideLine builds a debit line for positive amounts and a credit line
// for negative ones.
func sideLine(accountID uuid.UUID, desc string, amount decimal.Decimal) journal.DraftLine {
	l := journal.DraftLine{AccountID: accountID, Description: desc}
	if amount.IsNegative() {
		l.Credit = amount.Neg()
	} else {
		l.Debit = amount
	}
	return l
}

// openingBalanceDraft re-states every balance-sheet account's balance
// as of year end, dated the successor year's first day.
func openingBalanceDraft(accounts []model.Account, tenantID uuid.UUID, fy model.FiscalYear) model.Transaction {
	var lines []journal.DraftLine
	for _, a := range accounts {
		if a.Type.Temporary() || a.IsHeader || a.Balance.IsZero() {
			continue
		}
		desc := fmt.Sprintf("Opening balance %s", a.Name)
		// Debit-normal balances open on the debit side, credit-normal
		// on the credit side.
		amount := a.Balance
		if a.Type.NormalBalance() == model.SideCredit {
			amount = amount.Neg()
		}
		lines = append(lines, sideLine(a.ID, desc, amount))
	}

	ref := model.SourceRef{Kind: "opening", ID: fy.ID.String()}
	return journal.NewDraft(tenantID, fy.End.AddDate(0, 0, 1), fmt.Sprintf("Opening balances %d", fy.Year+1), ref, lines)
}
