package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybook-dev/tallybook/internal/audit"
	"github.com/tallybook-dev/tallybook/internal/model"
)

var testTenant = uuid.MustParse("6fa459ea-ee8a-3ca4-894e-db77e160355e")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

func seedAccount(m *Memory, code string) model.Account {
	a := model.Account{ID: uuid.New(), TenantID: testTenant, Code: code, Type: model.AccountTypeAsset, Active: true}
	m.PutAccount(a)
	return a
}

func seedYear(m *Memory) model.FiscalYear {
	fy := model.FiscalYear{
		ID:       uuid.New(),
		TenantID: testTenant,
		Year:     2025,
		Start:    date(2025, 1, 1),
		End:      date(2025, 12, 31),
		Status:   model.PeriodOpen,
	}
	for i := 1; i <= 12; i++ {
		start := date(2025, i, 1)
		fy.Periods = append(fy.Periods, model.Period{
			ID:           uuid.New(),
			TenantID:     testTenant,
			FiscalYearID: fy.ID,
			Number:       i,
			Start:        start,
			End:          start.AddDate(0, 1, -1),
			Status:       model.PeriodOpen,
		})
	}
	m.PutFiscalYear(fy)
	return fy
}

func TestCommitAtomicRollback(t *testing.T) {
	m := NewMemory()
	a := seedAccount(m, "1010")

	boom := errors.New("boom")
	err := m.Commit(context.Background(), testTenant, func(tx Tx) error {
		require.NoError(t, tx.UpdateAccountBalance(a.ID, 0, dec("500.00")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.Account(context.Background(), testTenant, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero(), "failed commit must not leak balance changes")
	assert.Equal(t, int64(0), got.Version)
}

func TestCommitAppliesWrites(t *testing.T) {
	m := NewMemory()
	a := seedAccount(m, "1010")

	err := m.Commit(context.Background(), testTenant, func(tx Tx) error {
		if err := tx.UpdateAccountBalance(a.ID, 0, dec("250.00")); err != nil {
			return err
		}
		return tx.AppendAudit(audit.Entry{Action: "post", EntityID: a.ID.String()})
	})
	require.NoError(t, err)

	got, err := m.Account(context.Background(), testTenant, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("250.00")))
	assert.Equal(t, int64(1), got.Version)

	log, err := m.AuditLog(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "post", log[0].Action)
}

func TestVersionConflict(t *testing.T) {
	m := NewMemory()
	a := seedAccount(m, "1010")

	err := m.Commit(context.Background(), testTenant, func(tx Tx) error {
		return tx.UpdateAccountBalance(a.ID, 7, dec("1.00"))
	})

	var conflict model.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "account", conflict.Entity)
}

func TestNextEntrySeq(t *testing.T) {
	m := NewMemory()
	m.PutTransaction(model.Transaction{ID: uuid.New(), TenantID: testTenant, EntryNo: "2025-01-004", Date: date(2025, 1, 5)})

	err := m.Commit(context.Background(), testTenant, func(tx Tx) error {
		n, err := tx.NextEntrySeq(2025, 1)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		require.NoError(t, tx.SaveTransaction(model.Transaction{ID: uuid.New(), TenantID: testTenant, EntryNo: "2025-01-005", Date: date(2025, 1, 6)}))

		// A second draft in the same commit sees the staged entry.
		n, err = tx.NextEntrySeq(2025, 1)
		require.NoError(t, err)
		assert.Equal(t, 6, n)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdatePeriodCAS(t *testing.T) {
	m := NewMemory()
	fy := seedYear(m)
	p := fy.Periods[0]

	p.Status = model.PeriodClosed
	require.NoError(t, m.UpdatePeriod(context.Background(), p))

	got, err := m.Period(context.Background(), testTenant, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PeriodClosed, got.Status)
	assert.Equal(t, int64(1), got.Version)

	// Replaying the same stale update conflicts.
	err = m.UpdatePeriod(context.Background(), p)
	var conflict model.ConcurrentModificationError
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdatePeriodLeavesEarlierReadsUntouched(t *testing.T) {
	m := NewMemory()
	fy := seedYear(m)

	before, err := m.FiscalYears(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, before, 1)

	p := fy.Periods[0]
	p.Status = model.PeriodClosed
	require.NoError(t, m.UpdatePeriod(context.Background(), p))

	assert.Equal(t, model.PeriodOpen, before[0].Periods[0].Status, "earlier read keeps its snapshot")

	after, err := m.FiscalYears(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, model.PeriodClosed, after[0].Periods[0].Status)
}

func TestTransactionsFilterAndOrder(t *testing.T) {
	m := NewMemory()
	acctID := uuid.New()

	later := model.Transaction{ID: uuid.New(), TenantID: testTenant, EntryNo: "2025-02-001", Date: date(2025, 2, 1), Status: model.StatusPosted}
	earlier := model.Transaction{
		ID: uuid.New(), TenantID: testTenant, EntryNo: "2025-01-001", Date: date(2025, 1, 10), Status: model.StatusPosted,
		Lines: []model.JournalLine{{AccountID: acctID, Debit: dec("5.00")}},
	}
	draft := model.Transaction{ID: uuid.New(), TenantID: testTenant, EntryNo: "2025-01-002", Date: date(2025, 1, 11), Status: model.StatusDraft}
	m.PutTransaction(later)
	m.PutTransaction(earlier)
	m.PutTransaction(draft)

	posted, err := m.Transactions(context.Background(), testTenant, TxFilter{Status: model.StatusPosted})
	require.NoError(t, err)
	require.Len(t, posted, 2)
	assert.Equal(t, earlier.ID, posted[0].ID, "sorted by date")

	byAccount, err := m.Transactions(context.Background(), testTenant, TxFilter{AccountID: acctID})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, earlier.ID, byAccount[0].ID)
}

func TestLoadSnapshot(t *testing.T) {
	m := NewMemory()
	seedAccount(m, "1010")
	seedYear(m)
	m.PutTransaction(model.Transaction{ID: uuid.New(), TenantID: testTenant, EntryNo: "2025-01-001", Date: date(2025, 1, 5), Status: model.StatusPosted})

	snap, err := LoadSnapshot(context.Background(), m, testTenant)
	require.NoError(t, err)
	assert.Len(t, snap.Accounts, 1)
	assert.Len(t, snap.FiscalYears, 1)
	assert.Len(t, snap.Transactions, 1)
}
