// Package postgres persists the ledger in PostgreSQL. Commits run as
// serializable database transactions holding a per-tenant advisory
// lock, which gives the same one-writer-per-tenant guarantee as the
// in-memory store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tallybook-dev/tallybook/internal/audit"
	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/store"
)

// Open connects to the database and configures the pool.
func Open(connStr string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Store implements store.Ledger on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ store.Ledger = (*Store)(nil)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func tenantLockKey(tenantID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(tenantID[:])
	return int64(h.Sum64())
}

// Commit runs fn inside a serializable transaction holding the
// tenant's advisory lock. Serialization failures surface as
// ConcurrentModificationError so callers can re-read and retry.
func (s *Store) Commit(ctx context.Context, tenantID uuid.UUID, fn func(tx store.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", tenantLockKey(tenantID)); err != nil {
		return fmt.Errorf("acquiring tenant lock: %w", err)
	}

	if err := fn(&pgTx{ctx: ctx, tx: dbTx, tenantID: tenantID}); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

const selectAccountColumns = `
	id, tenant_id, code, name, type, parent_id, is_header, active, currency, balance, version
`

func scanAccount(s scanner) (model.Account, error) {
	var a model.Account
	var typeStr string
	var parentID *uuid.UUID

	if err := s.Scan(
		&a.ID, &a.TenantID, &a.Code, &a.Name, &typeStr,
		&parentID, &a.IsHeader, &a.Active, &a.Currency, &a.Balance, &a.Version,
	); err != nil {
		return model.Account{}, err
	}

	a.Type = model.AccountType(typeStr)
	if parentID != nil {
		a.ParentID = *parentID
	}
	return a, nil
}

func (s *Store) Accounts(ctx context.Context, tenantID uuid.UUID) ([]model.Account, error) {
	return queryAccounts(ctx, s.db, tenantID)
}

func queryAccounts(ctx context.Context, q querier, tenantID uuid.UUID) ([]model.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE tenant_id = $1 ORDER BY code`

	rows, err := q.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) Account(ctx context.Context, tenantID, accountID uuid.UUID) (model.Account, error) {
	return queryAccount(ctx, s.db, tenantID, accountID)
}

func queryAccount(ctx context.Context, q querier, tenantID, accountID uuid.UUID) (model.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE tenant_id = $1 AND id = $2`

	a, err := scanAccount(q.QueryRowContext(ctx, query, tenantID, accountID))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Account{}, fmt.Errorf("account %s: %w", accountID, model.ErrNotFound)
		}
		return model.Account{}, fmt.Errorf("getting account: %w", err)
	}
	return a, nil
}

const selectTransactionColumns = `
	id, tenant_id, entry_no, date, description, status, currency,
	total_debit, total_credit, ref_kind, ref_id, period_id, reversal_of, reversed_by, version
`

func scanTransactionRow(s scanner) (model.Transaction, error) {
	var t model.Transaction
	var statusStr string
	var periodID, reversalOf, reversedBy *uuid.UUID

	if err := s.Scan(
		&t.ID, &t.TenantID, &t.EntryNo, &t.Date, &t.Description, &statusStr, &t.Currency,
		&t.TotalDebit, &t.TotalCredit, &t.Reference.Kind, &t.Reference.ID,
		&periodID, &reversalOf, &reversedBy, &t.Version,
	); err != nil {
		return model.Transaction{}, err
	}

	t.Status = model.TransactionStatus(statusStr)
	if periodID != nil {
		t.PeriodID = *periodID
	}
	if reversalOf != nil {
		t.ReversalOf = *reversalOf
	}
	if reversedBy != nil {
		t.ReversedBy = *reversedBy
	}
	return t, nil
}

func loadLines(ctx context.Context, q querier, txID uuid.UUID) ([]model.JournalLine, error) {
	query := `
		SELECT line_id, account_id, description, debit, credit, currency, original_amount, rate
		FROM journal_lines WHERE transaction_id = $1 ORDER BY position`

	rows, err := q.QueryContext(ctx, query, txID)
	if err != nil {
		return nil, fmt.Errorf("loading lines: %w", err)
	}
	defer rows.Close()

	var lines []model.JournalLine
	for rows.Next() {
		var l model.JournalLine
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Description, &l.Debit, &l.Credit, &l.Currency, &l.OriginalAmount, &l.Rate); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) Transaction(ctx context.Context, tenantID, txID uuid.UUID) (model.Transaction, error) {
	return queryTransaction(ctx, s.db, tenantID, txID)
}

func queryTransaction(ctx context.Context, q querier, tenantID, txID uuid.UUID) (model.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE tenant_id = $1 AND id = $2`

	t, err := scanTransactionRow(q.QueryRowContext(ctx, query, tenantID, txID))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Transaction{}, fmt.Errorf("transaction %s: %w", txID, model.ErrNotFound)
		}
		return model.Transaction{}, fmt.Errorf("getting transaction: %w", err)
	}

	t.Lines, err = loadLines(ctx, q, t.ID)
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

func (s *Store) Transactions(ctx context.Context, tenantID uuid.UUID, filter store.TxFilter) ([]model.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND date >= $%d", argIdx)
		args = append(args, filter.From)
		argIdx++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND date <= $%d", argIdx)
		args = append(args, filter.To)
		argIdx++
	}
	if filter.AccountID != uuid.Nil {
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM journal_lines l WHERE l.transaction_id = transactions.id AND l.account_id = $%d)", argIdx)
		args = append(args, filter.AccountID)
		argIdx++
	}

	query += " ORDER BY date, entry_no"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	for i := range txns {
		txns[i].Lines, err = loadLines(ctx, s.db, txns[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return txns, nil
}

const selectPeriodColumns = `
	id, tenant_id, fiscal_year_id, number, name, start_date, end_date, status, version
`

func scanPeriod(s scanner) (model.Period, error) {
	var p model.Period
	var statusStr string
	if err := s.Scan(&p.ID, &p.TenantID, &p.FiscalYearID, &p.Number, &p.Name, &p.Start, &p.End, &statusStr, &p.Version); err != nil {
		return model.Period{}, err
	}
	p.Status = model.PeriodStatus(statusStr)
	return p, nil
}

func (s *Store) FiscalYears(ctx context.Context, tenantID uuid.UUID) ([]model.FiscalYear, error) {
	query := `SELECT id, tenant_id, year, start_date, end_date, status, version
		FROM fiscal_years WHERE tenant_id = $1 ORDER BY year`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing fiscal years: %w", err)
	}
	defer rows.Close()

	var years []model.FiscalYear
	for rows.Next() {
		var fy model.FiscalYear
		var statusStr string
		if err := rows.Scan(&fy.ID, &fy.TenantID, &fy.Year, &fy.Start, &fy.End, &statusStr, &fy.Version); err != nil {
			return nil, fmt.Errorf("scanning fiscal year: %w", err)
		}
		fy.Status = model.PeriodStatus(statusStr)
		years = append(years, fy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fiscal years: %w", err)
	}

	for i := range years {
		periods, err := s.periodsForYear(ctx, years[i].ID)
		if err != nil {
			return nil, err
		}
		years[i].Periods = periods
	}
	return years, nil
}

func (s *Store) periodsForYear(ctx context.Context, yearID uuid.UUID) ([]model.Period, error) {
	query := `SELECT ` + selectPeriodColumns + ` FROM periods WHERE fiscal_year_id = $1 ORDER BY number`

	rows, err := s.db.QueryContext(ctx, query, yearID)
	if err != nil {
		return nil, fmt.Errorf("listing periods: %w", err)
	}
	defer rows.Close()

	var periods []model.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (s *Store) Period(ctx context.Context, tenantID, periodID uuid.UUID) (model.Period, error) {
	query := `SELECT ` + selectPeriodColumns + ` FROM periods WHERE tenant_id = $1 AND id = $2`

	p, err := scanPeriod(s.db.QueryRowContext(ctx, query, tenantID, periodID))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Period{}, fmt.Errorf("period %s: %w", periodID, model.ErrNotFound)
		}
		return model.Period{}, fmt.Errorf("getting period: %w", err)
	}
	return p, nil
}

func (s *Store) PeriodFor(ctx context.Context, tenantID uuid.UUID, date time.Time) (model.Period, error) {
	return queryPeriodFor(ctx, s.db, tenantID, date)
}

// queryPeriodFor resolves a date to a period. When an adjustment period
// shadows a day, the lowest-numbered open period wins; with none open,
// the first covering period is returned so callers can report its
// closed status.
func queryPeriodFor(ctx context.Context, q querier, tenantID uuid.UUID, date time.Time) (model.Period, error) {
	query := `SELECT ` + selectPeriodColumns + `
		FROM periods
		WHERE tenant_id = $1 AND start_date <= $2 AND end_date >= $2
		ORDER BY (status <> 'open'), number
		LIMIT 1`

	p, err := scanPeriod(q.QueryRowContext(ctx, query, tenantID, date))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Period{}, fmt.Errorf("no period contains %s: %w", date.Format("2006-01-02"), model.ErrNotFound)
		}
		return model.Period{}, fmt.Errorf("resolving period: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePeriod(ctx context.Context, p model.Period) error {
	return execUpdatePeriod(ctx, s.db, p)
}

func execUpdatePeriod(ctx context.Context, q querier, p model.Period) error {
	query := `UPDATE periods SET status = $1, version = version + 1
		WHERE id = $2 AND tenant_id = $3 AND version = $4`

	res, err := q.ExecContext(ctx, query, string(p.Status), p.ID, p.TenantID, p.Version)
	if err != nil {
		return fmt.Errorf("updating period: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating period: %w", err)
	}
	if n == 0 {
		return model.ConcurrentModificationError{Entity: "period", ID: p.ID}
	}
	return nil
}

func (s *Store) UpdateFiscalYear(ctx context.Context, fy model.FiscalYear) error {
	return execUpdateFiscalYear(ctx, s.db, fy)
}

func execUpdateFiscalYear(ctx context.Context, q querier, fy model.FiscalYear) error {
	query := `UPDATE fiscal_years SET status = $1, version = version + 1
		WHERE id = $2 AND tenant_id = $3 AND version = $4`

	res, err := q.ExecContext(ctx, query, string(fy.Status), fy.ID, fy.TenantID, fy.Version)
	if err != nil {
		return fmt.Errorf("updating fiscal year: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating fiscal year: %w", err)
	}
	if n == 0 {
		return model.ConcurrentModificationError{Entity: "fiscal_year", ID: fy.ID}
	}
	return nil
}

func (s *Store) AuditLog(ctx context.Context, tenantID uuid.UUID) ([]audit.Entry, error) {
	query := `SELECT at, tenant_id, actor, action, entity_type, entity_id, before, after, reason
		FROM audit_log WHERE tenant_id = $1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.Timestamp, &e.TenantID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &e.Before, &e.After, &e.Reason); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
