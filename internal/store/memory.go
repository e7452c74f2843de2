package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/audit"
	"github.com/tallybook-dev/tallybook/internal/id"
	"github.com/tallybook-dev/tallybook/internal/model"
)

// Memory is an in-process Ledger used by tests and the CLI workspace.
// Commits stage their writes and merge them only if the callback
// succeeds, so a failed commit leaves no partial state.
type Memory struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*tenantState
}

type tenantState struct {
	mu       sync.Mutex // serializes commits and reads per tenant
	accounts map[uuid.UUID]model.Account
	acctIDs  []uuid.UUID
	txns     map[uuid.UUID]model.Transaction
	txnIDs   []uuid.UUID
	years    map[uuid.UUID]model.FiscalYear
	yearIDs  []uuid.UUID
	audit    []audit.Entry
	seq      map[string]int // "YYYY-MM" -> highest sequence used
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{tenants: make(map[uuid.UUID]*tenantState)}
}

func (m *Memory) tenant(tenantID uuid.UUID) *tenantState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.tenants[tenantID]
	if !ok {
		ts = &tenantState{
			accounts: make(map[uuid.UUID]model.Account),
			txns:     make(map[uuid.UUID]model.Transaction),
			years:    make(map[uuid.UUID]model.FiscalYear),
			seq:      make(map[string]int),
		}
		m.tenants[tenantID] = ts
	}
	return ts
}

// PutAccount seeds or replaces an account outside any commit.
func (m *Memory) PutAccount(a model.Account) {
	ts := m.tenant(a.TenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, exists := ts.accounts[a.ID]; !exists {
		ts.acctIDs = append(ts.acctIDs, a.ID)
	}
	ts.accounts[a.ID] = a
}

// PutFiscalYear seeds or replaces a fiscal year with its periods.
func (m *Memory) PutFiscalYear(fy model.FiscalYear) {
	ts := m.tenant(fy.TenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, exists := ts.years[fy.ID]; !exists {
		ts.yearIDs = append(ts.yearIDs, fy.ID)
	}
	ts.years[fy.ID] = fy
}

// PutTransaction seeds a transaction outside any commit, registering
// its entry number against the month sequence.
func (m *Memory) PutTransaction(tx model.Transaction) {
	ts := m.tenant(tx.TenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.putTransactionLocked(tx)
}

func (ts *tenantState) putTransactionLocked(tx model.Transaction) {
	if _, exists := ts.txns[tx.ID]; !exists {
		ts.txnIDs = append(ts.txnIDs, tx.ID)
	}
	ts.txns[tx.ID] = tx
	if n, err := id.Parse(tx.EntryNo); err == nil {
		key := fmt.Sprintf("%04d-%02d", n.Year, n.Month)
		if n.Seq > ts.seq[key] {
			ts.seq[key] = n.Seq
		}
	}
}

func (ts *tenantState) periodForLocked(date time.Time) (model.Period, error) {
	for _, yid := range ts.yearIDs {
		if p, ok := ts.years[yid].PeriodFor(date); ok {
			return p, nil
		}
	}
	return model.Period{}, model.ErrNotFound
}

// checkPeriodLocked verifies a period update's version against current
// state without applying it.
func (ts *tenantState) checkPeriodLocked(p model.Period) error {
	fy, ok := ts.years[p.FiscalYearID]
	if !ok {
		return fmt.Errorf("fiscal year %s: %w", p.FiscalYearID, model.ErrNotFound)
	}
	for _, cur := range fy.Periods {
		if cur.ID != p.ID {
			continue
		}
		if cur.Version != p.Version {
			return model.ConcurrentModificationError{Entity: "period", ID: p.ID}
		}
		return nil
	}
	return fmt.Errorf("period %s: %w", p.ID, model.ErrNotFound)
}

// applyPeriodLocked replaces one period, copying the Periods slice so
// fiscal years handed out by earlier reads keep their snapshot.
func (ts *tenantState) applyPeriodLocked(p model.Period) {
	fy, ok := ts.years[p.FiscalYearID]
	if !ok {
		return
	}
	periods := make([]model.Period, len(fy.Periods))
	copy(periods, fy.Periods)
	for i, cur := range periods {
		if cur.ID == p.ID {
			p.Version++
			periods[i] = p
			break
		}
	}
	fy.Periods = periods
	ts.years[fy.ID] = fy
}

func (ts *tenantState) checkFiscalYearLocked(fy model.FiscalYear) error {
	cur, ok := ts.years[fy.ID]
	if !ok {
		return fmt.Errorf("fiscal year %s: %w", fy.ID, model.ErrNotFound)
	}
	if cur.Version != fy.Version {
		return model.ConcurrentModificationError{Entity: "fiscal_year", ID: fy.ID}
	}
	return nil
}

func (ts *tenantState) applyFiscalYearLocked(fy model.FiscalYear) {
	fy.Version++
	ts.years[fy.ID] = fy
}

// memTx stages writes for one commit.
type memTx struct {
	ts       *tenantState
	tenantID uuid.UUID

	accounts   map[uuid.UUID]model.Account
	newTxns    []model.Transaction
	updTxns    []model.Transaction
	updPeriods []model.Period
	updYears   []model.FiscalYear
	audit      []audit.Entry
}

func (t *memTx) Account(accountID uuid.UUID) (model.Account, error) {
	if a, ok := t.accounts[accountID]; ok {
		return a, nil
	}
	a, ok := t.ts.accounts[accountID]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, model.ErrNotFound)
	}
	return a, nil
}

func (t *memTx) Accounts() ([]model.Account, error) {
	out := make([]model.Account, 0, len(t.ts.acctIDs))
	for _, aid := range t.ts.acctIDs {
		a := t.ts.accounts[aid]
		if staged, ok := t.accounts[aid]; ok {
			a = staged
		}
		out = append(out, a)
	}
	return out, nil
}

func (t *memTx) UpdateAccountBalance(accountID uuid.UUID, version int64, balance decimal.Decimal) error {
	a, err := t.Account(accountID)
	if err != nil {
		return err
	}
	if a.Version != version {
		return model.ConcurrentModificationError{Entity: "account", ID: accountID}
	}
	a.Balance = balance
	a.Version++
	t.accounts[accountID] = a
	return nil
}

func (t *memTx) Transaction(txID uuid.UUID) (model.Transaction, error) {
	for _, s := range t.updTxns {
		if s.ID == txID {
			return s, nil
		}
	}
	for _, s := range t.newTxns {
		if s.ID == txID {
			return s, nil
		}
	}
	tx, ok := t.ts.txns[txID]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txID, model.ErrNotFound)
	}
	return tx, nil
}

func (t *memTx) SaveTransaction(tx model.Transaction) error {
	if _, exists := t.ts.txns[tx.ID]; exists {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	t.newTxns = append(t.newTxns, tx)
	return nil
}

func (t *memTx) UpdateTransaction(tx model.Transaction) error {
	cur, ok := t.ts.txns[tx.ID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, model.ErrNotFound)
	}
	if cur.Version != tx.Version {
		return model.ConcurrentModificationError{Entity: "transaction", ID: tx.ID}
	}
	tx.Version++
	t.updTxns = append(t.updTxns, tx)
	return nil
}

func (t *memTx) PeriodFor(date time.Time) (model.Period, error) {
	return t.ts.periodForLocked(date)
}

func (t *memTx) UpdatePeriod(p model.Period) error {
	if err := t.ts.checkPeriodLocked(p); err != nil {
		return err
	}
	t.updPeriods = append(t.updPeriods, p)
	return nil
}

func (t *memTx) UpdateFiscalYear(fy model.FiscalYear) error {
	if err := t.ts.checkFiscalYearLocked(fy); err != nil {
		return err
	}
	t.updYears = append(t.updYears, fy)
	return nil
}

func (t *memTx) NextEntrySeq(year, month int) (int, error) {
	key := fmt.Sprintf("%04d-%02d", year, month)
	next := t.ts.seq[key] + 1
	for _, tx := range t.newTxns {
		if n, err := id.Parse(tx.EntryNo); err == nil && n.Year == year && n.Month == month && n.Seq >= next {
			next = n.Seq + 1
		}
	}
	return next, nil
}

func (t *memTx) AppendAudit(e audit.Entry) error {
	t.audit = append(t.audit, e)
	return nil
}

// Commit runs fn against a staged view and merges its writes only on
// success. The tenant lock is held for the duration, which makes
// commits serializable per tenant.
func (m *Memory) Commit(ctx context.Context, tenantID uuid.UUID, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	tx := &memTx{ts: ts, tenantID: tenantID, accounts: make(map[uuid.UUID]model.Account)}
	if err := fn(tx); err != nil {
		return err
	}

	for aid, a := range tx.accounts {
		ts.accounts[aid] = a
	}
	for _, t := range tx.newTxns {
		ts.putTransactionLocked(t)
	}
	for _, t := range tx.updTxns {
		ts.txns[t.ID] = t
	}
	for _, p := range tx.updPeriods {
		ts.applyPeriodLocked(p)
	}
	for _, fy := range tx.updYears {
		ts.applyFiscalYearLocked(fy)
	}
	ts.audit = append(ts.audit, tx.audit...)
	return nil
}

func (m *Memory) Accounts(ctx context.Context, tenantID uuid.UUID) ([]model.Account, error) {
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]model.Account, 0, len(ts.acctIDs))
	for _, aid := range ts.acctIDs {
		out = append(out, ts.accounts[aid])
	}
	return out, nil
}

func (m *Memory) Account(ctx context.Context, tenantID, accountID uuid.UUID) (model.Account, error) {
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	a, ok := ts.accounts[accountID]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, model.ErrNotFound)
	}
	return a, nil
}

func (m *Memory) Transaction(ctx context.Context, tenantID, txID uuid.UUID) (model.Transaction, error) {
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	tx, ok := ts.txns[txID]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txID, model.ErrNotFound)
	}
	return tx, nil
}

func (m *Memory) Transactions(ctx context.Context, tenantID uuid.UUID, filter TxFilter) ([]model.Transaction, error) {
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	var out []model.Transaction
	for _, tid := range ts.txnIDs {
		if tx := ts.txns[tid]; filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EntryNo < out[j].EntryNo
	})
	return out, nil
}

func (m *Memory) FiscalYears(ctx context.Context, tenantID uuid.UUID) ([]model.FiscalYear, error) {
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]model.FiscalYear, 0, len(ts.yearIDs))
	for _, yid := range ts.yearIDs {
		out = append(out, ts.years[yid])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (m *Memory) Period(ctx context.Context, tenantID, periodID uuid.UUID) (model.Period, error) {
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, yid := range ts.yearIDs {
		for _, p := range ts.years[yid].Periods {
			if p.ID == periodID {
				return p, nil
			}
		}
	}
	return model.Period{}, fmt.Errorf("period %s: %w", periodID, model.ErrNotFound)
}

func (m *Memory) PeriodFor(ctx context.Context, tenantID uuid.UUID, date time.Time) (model.Period, error) {
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.periodForLocked(date)
}

func (m *Memory) UpdatePeriod(ctx context.Context, p model.Period) error {
	ts := m.tenant(p.TenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if err := ts.checkPeriodLocked(p); err != nil {
		return err
	}
	ts.applyPeriodLocked(p)
	return nil
}

func (m *Memory) UpdateFiscalYear(ctx context.Context, fy model.FiscalYear) error {
	ts := m.tenant(fy.TenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if err := ts.checkFiscalYearLocked(fy); err != nil {
		return err
	}
	ts.applyFiscalYearLocked(fy)
	return nil
}

func (m *Memory) AuditLog(ctx context.Context, tenantID uuid.UUID) ([]audit.Entry, error) {
	ts := m.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]audit.Entry, len(ts.audit))
	copy(out, ts.audit)
	return out, nil
}
