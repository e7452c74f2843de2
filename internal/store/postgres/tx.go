package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/audit"
	"github.com/tallybook-dev/tallybook/internal/model"
	"github.com/tallybook-dev/tallybook/internal/store"
)

// pgTx is the unit-of-work view over an open database transaction.
type pgTx struct {
	ctx      context.Context
	tx       *sql.Tx
	tenantID uuid.UUID
}

var _ store.Tx = (*pgTx)(nil)

func (t *pgTx) Account(accountID uuid.UUID) (model.Account, error) {
	return queryAccount(t.ctx, t.tx, t.tenantID, accountID)
}

func (t *pgTx) Accounts() ([]model.Account, error) {
	return queryAccounts(t.ctx, t.tx, t.tenantID)
}

func (t *pgTx) UpdateAccountBalance(accountID uuid.UUID, version int64, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND version = $4`

	res, err := t.tx.ExecContext(t.ctx, query, balance, accountID, t.tenantID, version)
	if err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}
	if n == 0 {
		return model.ConcurrentModificationError{Entity: "account", ID: accountID}
	}
	return nil
}

func (t *pgTx) Transaction(txID uuid.UUID) (model.Transaction, error) {
	return queryTransaction(t.ctx, t.tx, t.tenantID, txID)
}

func (t *pgTx) SaveTransaction(txn model.Transaction) error {
	query := `
		INSERT INTO transactions (id, tenant_id, entry_no, date, description, status, currency,
			total_debit, total_credit, ref_kind, ref_id, period_id, reversal_of, reversed_by, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := t.tx.ExecContext(t.ctx, query,
		txn.ID, txn.TenantID, txn.EntryNo, txn.Date, txn.Description, string(txn.Status), txn.Currency,
		txn.TotalDebit, txn.TotalCredit, txn.Reference.Kind, txn.Reference.ID,
		nullUUID(txn.PeriodID), nullUUID(txn.ReversalOf), nullUUID(txn.ReversedBy), txn.Version,
	)
	if err != nil {
		return fmt.Errorf("saving transaction: %w", err)
	}

	lineQuery := `
		INSERT INTO journal_lines (line_id, transaction_id, position, account_id, description,
			debit, credit, currency, original_amount, rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for i, l := range txn.Lines {
		_, err := t.tx.ExecContext(t.ctx, lineQuery,
			l.ID, txn.ID, i, l.AccountID, l.Description,
			l.Debit, l.Credit, l.Currency, l.OriginalAmount, l.Rate,
		)
		if err != nil {
			return fmt.Errorf("saving line %d: %w", i, err)
		}
	}
	return nil
}

func (t *pgTx) UpdateTransaction(txn model.Transaction) error {
	query := `UPDATE transactions SET status = $1, reversed_by = $2, version = version + 1
		WHERE id = $3 AND tenant_id = $4 AND version = $5`

	res, err := t.tx.ExecContext(t.ctx, query, string(txn.Status), nullUUID(txn.ReversedBy), txn.ID, t.tenantID, txn.Version)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}
	if n == 0 {
		return model.ConcurrentModificationError{Entity: "transaction", ID: txn.ID}
	}
	return nil
}

func (t *pgTx) PeriodFor(date time.Time) (model.Period, error) {
	return queryPeriodFor(t.ctx, t.tx, t.tenantID, date)
}

func (t *pgTx) UpdatePeriod(p model.Period) error {
	return execUpdatePeriod(t.ctx, t.tx, p)
}

func (t *pgTx) UpdateFiscalYear(fy model.FiscalYear) error {
	return execUpdateFiscalYear(t.ctx, t.tx, fy)
}

func (t *pgTx) NextEntrySeq(year, month int) (int, error) {
	query := `
		INSERT INTO entry_sequences (tenant_id, year, month, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, year, month) DO UPDATE SET seq = entry_sequences.seq + 1
		RETURNING seq`

	var seq int
	if err := t.tx.QueryRowContext(t.ctx, query, t.tenantID, year, month).Scan(&seq); err != nil {
		return 0, fmt.Errorf("advancing entry sequence: %w", err)
	}
	return seq, nil
}

func (t *pgTx) AppendAudit(e audit.Entry) error {
	query := `
		INSERT INTO audit_log (at, tenant_id, actor, action, entity_type, entity_id, before, after, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.tx.ExecContext(t.ctx, query,
		e.Timestamp, e.TenantID, e.Actor, e.Action, e.EntityType, e.EntityID, e.Before, e.After, e.Reason,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
