package posting

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// TrialBalanceRow is one account's position in a trial balance.
type TrialBalanceRow struct {
	Account model.Account
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// TrialBalance lists every non-header account on its natural side.
type TrialBalance struct {
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether total debits equal total credits within
// tolerance.
func (tb TrialBalance) Balanced(tolerance decimal.Decimal) bool {
	return tb.TotalDebit.Sub(tb.TotalCredit).Abs().LessThanOrEqual(tolerance)
}

// TrialBalance builds a trial balance from current account balances.
func (e *Engine) TrialBalance(ctx context.Context, tenantID uuid.UUID) (TrialBalance, error) {
	accounts, err := e.store.Accounts(ctx, tenantID)
	if err != nil {
		return TrialBalance{}, err
	}

	var tb TrialBalance
	for _, a := range accounts {
		if a.IsHeader || a.Balance.IsZero() {
			continue
		}
		row := TrialBalanceRow{Account: a}
		// A positive balance sits on the account's normal side; a
		// negative one flips to the other side.
		amount := a.Balance
		side := a.Type.NormalBalance()
		if amount.IsNegative() {
			amount = amount.Neg()
			if side == model.SideDebit {
				side = model.SideCredit
			} else {
				side = model.SideDebit
			}
		}
		if side == model.SideDebit {
			row.Debit = amount
		} else {
			row.Credit = amount
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	return tb, nil
}

// Equation is the fundamental accounting equation evaluated over
// current balances: assets against liabilities + equity + net income.
type Equation struct {
	Assets    decimal.Decimal
	Claims    decimal.Decimal // liabilities + equity + (revenue - expenses)
	NetIncome decimal.Decimal
}

// Holds reports whether assets equal claims within tolerance.
func (eq Equation) Holds(tolerance decimal.Decimal) bool {
	return eq.Assets.Sub(eq.Claims).Abs().LessThanOrEqual(tolerance)
}

// CheckEquation evaluates the fundamental equation for a tenant.
// Revenue and expense balances not yet closed to equity count as
// current-period net income on the claims side.
func (e *Engine) CheckEquation(ctx context.Context, tenantID uuid.UUID) (Equation, error) {
	accounts, err := e.store.Accounts(ctx, tenantID)
	if err != nil {
		return Equation{}, err
	}

	var eq Equation
	for _, a := range accounts {
		if a.IsHeader {
			continue
		}
		switch a.Type {
		case model.AccountTypeAsset:
			eq.Assets = eq.Assets.Add(a.Balance)
		case model.AccountTypeLiability, model.AccountTypeEquity:
			eq.Claims = eq.Claims.Add(a.Balance)
		case model.AccountTypeRevenue:
			eq.NetIncome = eq.NetIncome.Add(a.Balance)
		case model.AccountTypeExpense:
			eq.NetIncome = eq.NetIncome.Sub(a.Balance)
		}
	}
	eq.Claims = eq.Claims.Add(eq.NetIncome)
	return eq, nil
}
