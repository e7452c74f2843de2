package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tallybook-dev/tallybook/internal/audit"
	"github.com/tallybook-dev/tallybook/internal/model"
)

// Tx is the unit-of-work view handed to Commit callbacks. Everything
// done through a Tx is applied atomically or not at all.
type Tx interface {
	Account(accountID uuid.UUID) (model.Account, error)
	Accounts() ([]model.Account, error)
	// UpdateAccountBalance applies a new balance if the stored version
	// still matches; otherwise it fails with ConcurrentModificationError.
	UpdateAccountBalance(accountID uuid.UUID, version int64, balance decimal.Decimal) error
	Transaction(txID uuid.UUID) (model.Transaction, error)
	SaveTransaction(tx model.Transaction) error
	UpdateTransaction(tx model.Transaction) error
	PeriodFor(date time.Time) (model.Period, error)
	// UpdatePeriod and UpdateFiscalYear are compare-and-swap on Version.
	UpdatePeriod(p model.Period) error
	UpdateFiscalYear(fy model.FiscalYear) error
	NextEntrySeq(year, month int) (int, error)
	AppendAudit(e audit.Entry) error
}

// TxFilter narrows Transactions listings.
type TxFilter struct {
	Status    model.TransactionStatus // "" = any
	From      time.Time               // zero = unbounded
	To        time.Time               // zero = unbounded
	AccountID uuid.UUID               // Nil = any
}

// Matches reports whether a transaction passes the filter.
func (f TxFilter) Matches(tx model.Transaction) bool {
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	if f.AccountID != uuid.Nil {
		found := false
		for _, l := range tx.Lines {
			if l.AccountID == f.AccountID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Ledger is the engine's persistence contract. Commits for one tenant
// are serialized: two concurrent commits touching the same tenant never
// interleave their writes.
type Ledger interface {
	Commit(ctx context.Context, tenantID uuid.UUID, fn func(tx Tx) error) error

	Accounts(ctx context.Context, tenantID uuid.UUID) ([]model.Account, error)
	Account(ctx context.Context, tenantID, accountID uuid.UUID) (model.Account, error)
	Transaction(ctx context.Context, tenantID, txID uuid.UUID) (model.Transaction, error)
	Transactions(ctx context.Context, tenantID uuid.UUID, filter TxFilter) ([]model.Transaction, error)

	FiscalYears(ctx context.Context, tenantID uuid.UUID) ([]model.FiscalYear, error)
	Period(ctx context.Context, tenantID, periodID uuid.UUID) (model.Period, error)
	PeriodFor(ctx context.Context, tenantID uuid.UUID, date time.Time) (model.Period, error)
	// UpdatePeriod and UpdateFiscalYear are compare-and-swap on Version.
	UpdatePeriod(ctx context.Context, p model.Period) error
	UpdateFiscalYear(ctx context.Context, fy model.FiscalYear) error

	AuditLog(ctx context.Context, tenantID uuid.UUID) ([]audit.Entry, error)
}

// Snapshot is a point-in-time read of one tenant's books.
type Snapshot struct {
	Accounts     []model.Account
	FiscalYears  []model.FiscalYear
	Transactions []model.Transaction
}

// LoadSnapshot reads a tenant's accounts, fiscal years, and posted
// transactions concurrently.
func LoadSnapshot(ctx context.Context, l Ledger, tenantID uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := l.Accounts(ctx, tenantID)
		snap.Accounts = accounts
		return err
	})
	g.Go(func() error {
		years, err := l.FiscalYears(ctx, tenantID)
		snap.FiscalYears = years
		return err
	})
	g.Go(func() error {
		txns, err := l.Transactions(ctx, tenantID, TxFilter{Status: model.StatusPosted})
		snap.Transactions = txns
		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
