package reconcile

import (
	"strings"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// classifyBank sub-classifies a bank transaction no strategy matched.
// A negative amount whose description mentions a fee keyword is a bank
// fee the ledger hasn't recorded yet; anything else awaits a ledger
// entry.
func classifyBank(b model.BankTransaction, cfg Config) model.UnmatchedKind {
	if b.Amount.IsNegative() {
		desc := strings.ToLower(b.Description)
		for _, kw := range cfg.FeeKeywords {
			if strings.Contains(desc, kw) {
				return model.UnmatchedBankFee
			}
		}
	}
	return model.UnmatchedUncleared
}

// classifyLedger sub-classifies a ledger item the bank feed never
// showed. A negative amount is an outstanding check (issued, not yet
// presented); a positive amount dated after the statement window is a
// deposit in transit.
func classifyLedger(l LedgerItem, window Window) model.UnmatchedKind {
	if l.Amount.IsNegative() {
		return model.UnmatchedOutstandingCheck
	}
	if l.Amount.IsPositive() && l.Date.After(window.End) {
		return model.UnmatchedDepositInTransit
	}
	return model.UnmatchedUncleared
}
