package fiscal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tallybook-dev/tallybook/internal/currency"
	"github.com/tallybook-dev/tallybook/internal/journal"
	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/posting"
	"github.com/tallybook-dev/tallybook/internal/store"
)

var testTenant = uuid.MustParse("6fa459ea-ee8a-3ca4-894e-db77e160355e")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

type fixture struct {
	store   *store.Memory
	manager *Manager
	engine  *posting.Engine
	year    model.FiscalYear
	summary SummaryAccounts

	cash     model.Account
	sales    model.Account
	rent     model.Account
	incSum   model.Account
	retained model.Account
}

// newFixture seeds a 2025 calendar year whose first two periods are
// open and the rest future.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{store: store.NewMemory()}

	mk := func(code, name string, typ model.AccountType) model.Account {
		a := model.Account{ID: uuid.New(), TenantID: testTenant, Code: code, Name: name, Type: typ, Active: true}
		f.store.PutAccount(a)
		return a
	}
	f.cash = mk("1010", "Cash", model.AccountTypeAsset)
	f.sales = mk("4000", "Sales", model.AccountTypeRevenue)
	f.rent = mk("5100", "Rent", model.AccountTypeExpense)
	f.incSum = mk("3900", "Income Summary", model.AccountTypeEquity)
	f.retained = mk("3800", "Retained Earnings", model.AccountTypeEquity)
	f.summary = SummaryAccounts{IncomeSummary: f.incSum.ID, RetainedEarnings: f.retained.ID}

	fy, err := GenerateYear(testTenant, 2025, date(2025, 1, 1), 12)
	require.NoError(t, err)
	fy.Status = model.PeriodOpen
	fy.Periods[0].Status = model.PeriodOpen
	fy.Periods[1].Status = model.PeriodOpen
	f.store.PutFiscalYear(fy)
	f.year = fy

	f.engine = posting.NewEngine(f.store, currency.NewConverter(nil), "USD", zap.NewNop())
	f.manager = NewManager(f.store, f.engine, zap.NewNop())
	return f
}

func (f *fixture) reload(t *testing.T) model.FiscalYear {
	t.Helper()
	years, err := f.store.FiscalYears(context.Background(), testTenant)
	require.NoError(t, err)
	for _, y := range years {
		if y.ID == f.year.ID {
			return y
		}
	}
	t.Fatalf("fiscal year %s not found", f.year.ID)
	return model.FiscalYear{}
}

func (f *fixture) balance(t *testing.T, a model.Account) decimal.Decimal {
	t.Helper()
	got, err := f.store.Account(context.Background(), testTenant, a.ID)
	require.NoError(t, err)
	return got.Balance
}

func (f *fixture) postSale(t *testing.T, day time.Time, amount string) {
	t.Helper()
	_, err := f.engine.Post(context.Background(), journal.NewDraft(testTenant, day, "sale", model.SourceRef{}, []journal.DraftLine{
		{AccountID: f.cash.ID, Debit: dec(amount)},
		{AccountID: f.sales.ID, Credit: dec(amount)},
	}), "alice")
	require.NoError(t, err)
}

func TestOpenPeriodOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.manager.OpenPeriod(ctx, testTenant, f.year.Periods[3].ID, "alice")
	require.Error(t, err, "period 4 cannot open while period 3 is future")

	require.NoError(t, f.manager.OpenPeriod(ctx, testTenant, f.year.Periods[2].ID, "alice"))
	assert.Equal(t, model.PeriodOpen, f.reload(t).Periods[2].Status)

	require.NoError(t, f.manager.OpenPeriod(ctx, testTenant, f.year.Periods[3].ID, "alice"))
}

func TestOpenPeriodInvalidTransition(t *testing.T) {
	f := newFixture(t)

	err := f.manager.OpenPeriod(context.Background(), testTenant, f.year.Periods[0].ID, "alice")
	var transition model.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, "open", transition.From)
}

func TestClosePeriodReportsEveryFailedCheck(t *testing.T) {
	f := newFixture(t)

	checks := []Check{
		{Name: "unposted_entries_exist", Passed: false},
		{Name: "unreconciled_bank_lines", Passed: false},
		{Name: "trial_balance_balanced", Passed: true},
	}
	err := f.manager.ClosePeriod(context.Background(), testTenant, f.year.Periods[0].ID, "alice", checks, f.summary)

	var failed model.PreCloseChecksFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []string{"unposted_entries_exist", "unreconciled_bank_lines"}, failed.Failed)

	assert.Equal(t, model.PeriodOpen, f.reload(t).Periods[0].Status, "failed checks leave the period open")
}

func TestClosePeriodPostsClosingEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.postSale(t, date(2025, 1, 10), "500.00")
	_, err := f.engine.Post(ctx, journal.NewDraft(testTenant, date(2025, 1, 20), "rent", model.SourceRef{}, []journal.DraftLine{
		{AccountID: f.rent.ID, Debit: dec("100.00")},
		{AccountID: f.cash.ID, Credit: dec("100.00")},
	}), "alice")
	require.NoError(t, err)

	require.NoError(t, f.manager.ClosePeriod(ctx, testTenant, f.year.Periods[0].ID, "alice", nil, f.summary))

	assert.Equal(t, model.PeriodClosed, f.reload(t).Periods[0].Status)
	assert.True(t, f.balance(t, f.sales).IsZero(), "revenue closed to zero, got %s", f.balance(t, f.sales))
	assert.True(t, f.balance(t, f.rent).IsZero(), "expense closed to zero, got %s", f.balance(t, f.rent))
	assert.True(t, f.balance(t, f.incSum).IsZero(), "income summary nets to zero, got %s", f.balance(t, f.incSum))
	assert.True(t, f.balance(t, f.retained).Equal(dec("400.00")), "net income lands in retained earnings, got %s", f.balance(t, f.retained))
}

func TestClosePeriodExcludesConcurrentPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.postSale(t, date(2025, 1, 10), "500.00")

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Post(ctx, journal.NewDraft(testTenant, date(2025, 1, 25), "late sale", model.SourceRef{}, []journal.DraftLine{
			{AccountID: f.cash.ID, Debit: dec("300.00")},
			{AccountID: f.sales.ID, Credit: dec("300.00")},
		}), "bob")
		done <- err
	}()

	require.NoError(t, f.manager.ClosePeriod(ctx, testTenant, f.year.Periods[0].ID, "alice", nil, f.summary))
	postErr := <-done

	// The racing post either lands before the close and is swept into
	// the closing entries, or hits the closed period and is rejected.
	// Either way nothing is left sitting in a closed period.
	assert.True(t, f.balance(t, f.sales).IsZero(), "revenue left unclosed: %s", f.balance(t, f.sales))
	assert.True(t, f.balance(t, f.incSum).IsZero(), "income summary left unclosed: %s", f.balance(t, f.incSum))
	if postErr != nil {
		var closed model.PeriodClosedError
		require.ErrorAs(t, postErr, &closed)
		assert.True(t, f.balance(t, f.retained).Equal(dec("500.00")), "retained earnings: %s", f.balance(t, f.retained))
	} else {
		assert.True(t, f.balance(t, f.retained).Equal(dec("800.00")), "retained earnings: %s", f.balance(t, f.retained))
	}
}

func TestClosePeriodWithoutActivity(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.ClosePeriod(context.Background(), testTenant, f.year.Periods[0].ID, "alice", nil, f.summary))
	assert.Equal(t, model.PeriodClosed, f.reload(t).Periods[0].Status)

	txns, err := f.store.Transactions(context.Background(), testTenant, store.TxFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns, "no closing entries when temporaries are zero")
}

func TestClosePeriodTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.ClosePeriod(ctx, testTenant, f.year.Periods[0].ID, "alice", nil, f.summary))

	err := f.manager.ClosePeriod(ctx, testTenant, f.year.Periods[0].ID, "alice", nil, f.summary)
	var transition model.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestReopenGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.manager.ClosePeriod(ctx, testTenant, f.year.Periods[0].ID, "alice", nil, f.summary))

	err := f.manager.Reopen(ctx, testTenant, f.year.Periods[0].ID, "alice", "", Approval{Granted: true})
	require.Error(t, err, "empty reason rejected")

	err = f.manager.Reopen(ctx, testTenant, f.year.Periods[0].ID, "alice", "late invoice", Approval{Token: "APR-1"})
	require.Error(t, err, "ungranted approval rejected")

	require.NoError(t, f.manager.Reopen(ctx, testTenant, f.year.Periods[0].ID, "alice", "late invoice", Approval{Token: "APR-1", Granted: true}))
	assert.Equal(t, model.PeriodOpen, f.reload(t).Periods[0].Status)

	log, err := f.store.AuditLog(ctx, testTenant)
	require.NoError(t, err)
	var found bool
	for _, e := range log {
		if e.Action == "open_period" && e.Reason == "late invoice" {
			found = true
		}
	}
	assert.True(t, found, "reopen leaves an audit record carrying the reason")
}

// failingCommitStore simulates a store whose commits stop succeeding.
type failingCommitStore struct {
	*store.Memory
	fail bool
}

func (s *failingCommitStore) Commit(ctx context.Context, tenantID uuid.UUID, fn func(tx store.Tx) error) error {
	if s.fail {
		return errors.New("connection reset")
	}
	return s.Memory.Commit(ctx, tenantID, fn)
}

func TestTransitionAndAuditCommitTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broken := &failingCommitStore{Memory: f.store, fail: true}
	manager := NewManager(broken, f.engine, zap.NewNop())

	err := manager.OpenPeriod(ctx, testTenant, f.year.Periods[2].ID, "alice")
	require.Error(t, err)

	assert.Equal(t, model.PeriodFuture, f.reload(t).Periods[2].Status, "failed commit leaves the status untouched")
	log, err := f.store.AuditLog(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, log, "no status change means no audit record")
}

func TestReopenOpenPeriod(t *testing.T) {
	f := newFixture(t)

	err := f.manager.Reopen(context.Background(), testTenant, f.year.Periods[0].ID, "alice", "why not", Approval{Granted: true})
	var transition model.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCloseFiscalYearRequiresClosedPeriods(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.CloseFiscalYear(context.Background(), testTenant, f.year.ID, "alice")
	var failed model.PreCloseChecksFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []string{"open_periods_remain"}, failed.Failed)
}

func TestCloseFiscalYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.postSale(t, date(2025, 1, 10), "250.00")
	require.NoError(t, f.manager.ClosePeriod(ctx, testTenant, f.year.Periods[0].ID, "alice", nil, f.summary))
	require.NoError(t, f.manager.ClosePeriod(ctx, testTenant, f.year.Periods[1].ID, "alice", nil, f.summary))
	for i := 2; i < 12; i++ {
		require.NoError(t, f.manager.OpenPeriod(ctx, testTenant, f.year.Periods[i].ID, "alice"))
		require.NoError(t, f.manager.ClosePeriod(ctx, testTenant, f.year.Periods[i].ID, "alice", nil, f.summary))
	}

	opening, err := f.manager.CloseFiscalYear(ctx, testTenant, f.year.ID, "alice")
	require.NoError(t, err)

	assert.Equal(t, model.PeriodClosed, f.reload(t).Status)
	assert.Equal(t, model.StatusDraft, opening.Status, "opening draft is returned, not posted")
	assert.Equal(t, date(2026, 1, 1), opening.Date)
	assert.True(t, opening.TotalDebit.Equal(opening.TotalCredit), "opening draft balances: %s vs %s", opening.TotalDebit, opening.TotalCredit)

	var hasCash, hasTemporary bool
	for _, l := range opening.Lines {
		if l.AccountID == f.cash.ID {
			hasCash = true
			assert.True(t, l.Debit.Equal(dec("250.00")))
		}
		if l.AccountID == f.sales.ID || l.AccountID == f.rent.ID {
			hasTemporary = true
		}
	}
	assert.True(t, hasCash, "balance-sheet accounts carry forward")
	assert.False(t, hasTemporary, "temporary accounts do not carry forward")

	_, err = f.manager.CloseFiscalYear(ctx, testTenant, f.year.ID, "alice")
	var transition model.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}
