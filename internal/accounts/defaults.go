package accounts

import (
	"github.com/google/uuid"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// Well-known account codes the engine depends on for closing and
// revaluation entries.
const (
	CodeIncomeSummary    = "3900"
	CodeRetainedEarnings = "3800"
	CodeFXGain           = "4900"
	CodeFXLoss           = "5900"
)

// DefaultChart returns a minimal chart of accounts for a new tenant,
// including the summary accounts closing and revaluation post into.
func DefaultChart(tenantID uuid.UUID) []model.Account {
	mk := func(code, name string, t model.AccountType, header bool) model.Account {
		return model.Account{
			ID:       uuid.New(),
			TenantID: tenantID,
			Code:     code,
			Name:     name,
			Type:     t,
			IsHeader: header,
			Active:   true,
		}
	}

	assets := mk("1000", "Assets", model.AccountTypeAsset, true)
	liabilities := mk("2000", "Liabilities", model.AccountTypeLiability, true)

	cash := mk("1010", "Cash", model.AccountTypeAsset, false)
	cash.ParentID = assets.ID
	receivable := mk("1100", "Accounts Receivable", model.AccountTypeAsset, false)
	receivable.ParentID = assets.ID
	payable := mk("2010", "Accounts Payable", model.AccountTypeLiability, false)
	payable.ParentID = liabilities.ID
	salesTax := mk("2100", "Sales Tax Payable", model.AccountTypeLiability, false)
	salesTax.ParentID = liabilities.ID

	return []model.Account{
		assets,
		cash,
		receivable,
		liabilities,
		payable,
		salesTax,
		mk("3000", "Owner's Equity", model.AccountTypeEquity, false),
		mk(CodeRetainedEarnings, "Retained Earnings", model.AccountTypeEquity, false),
		mk(CodeIncomeSummary, "Income Summary", model.AccountTypeEquity, false),
		mk("4000", "Sales Revenue", model.AccountTypeRevenue, false),
		mk(CodeFXGain, "Foreign Exchange Gain", model.AccountTypeRevenue, false),
		mk("5000", "Operating Expenses", model.AccountTypeExpense, false),
		mk(CodeFXLoss, "Foreign Exchange Loss", model.AccountTypeExpense, false),
	}
}
