package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Temporary reports whether balances of this type are closed out at
// period end (revenue and expense).
func (t AccountType) Temporary() bool {
	return t == AccountTypeRevenue || t == AccountTypeExpense
}

// BalanceSide is the side of the ledger an amount sits on.
type BalanceSide string

const (
	SideDebit  BalanceSide = "debit"
	SideCredit BalanceSide = "credit"
)

// NormalBalance returns the side on which an account of this type
// naturally increases. Derived from the type, never stored, so the two
// can never drift apart.
func (t AccountType) NormalBalance() BalanceSide {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Account is one row in the chart of accounts.
type Account struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Code     string // unique per tenant
	Name     string
	Type     AccountType
	ParentID uuid.UUID // uuid.Nil = top level; parents must be headers
	IsHeader bool      // header accounts aggregate children and reject postings
	Active   bool
	Currency string // denomination currency; "" means tenant base

	// Balance is the running balance on the account's normal side.
	// Mutated only by the posting engine.
	Balance decimal.Decimal

	Version int64
}

// Postable reports whether the account may receive journal lines.
func (a Account) Postable() bool {
	return a.Active && !a.IsHeader
}

// SignedDelta returns the balance change for a debit/credit pair applied
// to this account: a debit increases a debit-normal account and decreases
// a credit-normal one, and vice versa.
func (a Account) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if a.Type.NormalBalance() == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
