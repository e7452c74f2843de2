// Package reconcile matches an external bank feed against posted ledger
// lines for one bank account and statement window. The matcher is a
// read-only batch job: it emits match records and a variance summary,
// never mutates ledger or bank data, and never finalizes a
// reconciliation.
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// LedgerItem is one posted journal line flattened for matching. Amount
// is signed from the bank account's perspective: a debit to the cash
// account is positive (money in), a credit negative (money out).
type LedgerItem struct {
	LineID      string
	TxID        uuid.UUID
	AccountID   uuid.UUID
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// Window is one statement period, both ends inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Config tunes the matching strategies.
type Config struct {
	// DateTolerance bounds how far apart a fuzzy-date match may be.
	DateTolerance time.Duration
	// SimilarityFloor is the minimum description similarity.
	SimilarityFloor float64
	// AmountTolerance is the relative amount tolerance for description
	// and split matches, e.g. 0.01 for 1%.
	AmountTolerance decimal.Decimal
	// AutoFloor and SuggestFloor band confidences: >= AutoFloor matches
	// apply without review, >= SuggestFloor need confirmation, below
	// that a candidate is recorded but treated as unmatched.
	AutoFloor    decimal.Decimal
	SuggestFloor decimal.Decimal
	// MaxSplit caps how many ledger lines a split match may combine.
	MaxSplit int
	// FeeKeywords mark unmatched negative bank amounts as bank fees.
	FeeKeywords []string
}

// DefaultConfig returns the standard matching thresholds.
func DefaultConfig() Config {
	return Config{
		DateTolerance:   3 * 24 * time.Hour,
		SimilarityFloor: 0.8,
		AmountTolerance: decimal.NewFromFloat(0.01),
		AutoFloor:       decimal.NewFromFloat(0.95),
		SuggestFloor:    decimal.NewFromFloat(0.80),
		MaxSplit:        4,
		FeeKeywords:     []string{"fee", "charge", "interest", "service"},
	}
}

// ClassifiedBank is a bank transaction no strategy could match.
type ClassifiedBank struct {
	Txn  model.BankTransaction
	Kind model.UnmatchedKind
}

// ClassifiedLedger is a ledger item left over after matching.
type ClassifiedLedger struct {
	Item LedgerItem
	Kind model.UnmatchedKind
}

// Report is the outcome of one reconciliation run. Variance is
// bank total minus ledger total over the statement window.
type Report struct {
	BankAccountID   uuid.UUID
	Window          Window
	Matches         []model.ReconciliationMatch
	UnmatchedBank   []ClassifiedBank
	UnmatchedLedger []ClassifiedLedger
	BankTotal       decimal.Decimal
	LedgerTotal     decimal.Decimal
	Variance        decimal.Decimal
}

// Matcher runs the strategy pipeline.
type Matcher struct {
	cfg Config
	log *zap.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(cfg Config, log *zap.Logger) *Matcher {
	if cfg.MaxSplit <= 0 {
		cfg.MaxSplit = DefaultConfig().MaxSplit
	}
	return &Matcher{cfg: cfg, log: log}
}

// Reconcile matches bank transactions against ledger items in strict
// strategy priority order, greedily: each bank transaction takes the
// first strategy that yields a candidate, and matched ledger lines
// leave the pool before the next bank transaction is processed. Bank
// transactions are sorted by date, amount, then external id, so
// re-running on the same inputs yields the same matches.
//
// Cancellation is cooperative between bank-transaction iterations;
// matches found before cancellation are returned with the error.
func (m *Matcher) Reconcile(ctx context.Context, bankAccountID uuid.UUID, bankTxns []model.BankTransaction, ledger []LedgerItem, window Window) (Report, error) {
	report := Report{BankAccountID: bankAccountID, Window: window}

	bank := make([]model.BankTransaction, len(bankTxns))
	copy(bank, bankTxns)
	sort.Slice(bank, func(i, j int) bool {
		if !bank[i].Date.Equal(bank[j].Date) {
			return bank[i].Date.Before(bank[j].Date)
		}
		if !bank[i].Amount.Equal(bank[j].Amount) {
			return bank[i].Amount.LessThan(bank[j].Amount)
		}
		return bank[i].ExternalID < bank[j].ExternalID
	})

	pool := make([]LedgerItem, len(ledger))
	copy(pool, ledger)
	sort.Slice(pool, func(i, j int) bool {
		if !pool[i].Date.Equal(pool[j].Date) {
			return pool[i].Date.Before(pool[j].Date)
		}
		return pool[i].LineID < pool[j].LineID
	})

	for _, b := range bank {
		report.BankTotal = report.BankTotal.Add(b.Amount)
	}
	for _, l := range pool {
		report.LedgerTotal = report.LedgerTotal.Add(l.Amount)
	}
	report.Variance = report.BankTotal.Sub(report.LedgerTotal)

	strategies := []strategy{matchExact, matchFuzzyDate, matchDescription, matchSplit}

	for _, b := range bank {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var cand candidate
		found := false
		ambiguous := false
		for _, s := range strategies {
			c, ok, err := s(b, pool, m.cfg)
			if err != nil {
				// Equally confident candidates the tie-break cannot
				// separate: leave the transaction for human review.
				m.log.Warn("ambiguous match", zap.String("bank_txn", b.ExternalID), zap.Error(err))
				ambiguous = true
				break
			}
			if ok {
				cand = c
				found = true
				break
			}
		}

		if ambiguous {
			report.UnmatchedBank = append(report.UnmatchedBank, ClassifiedBank{Txn: b, Kind: model.UnmatchedAmbiguous})
			continue
		}
		if !found {
			report.UnmatchedBank = append(report.UnmatchedBank, ClassifiedBank{Txn: b, Kind: classifyBank(b, m.cfg)})
			continue
		}

		match := model.ReconciliationMatch{
			BankExternalID: b.ExternalID,
			Type:           cand.kind,
			Confidence:     cand.confidence,
			Band:           m.band(cand.confidence),
		}
		for _, item := range cand.items {
			match.LineIDs = append(match.LineIDs, item.LineID)
		}
		report.Matches = append(report.Matches, match)
		pool = remove(pool, cand.items)
	}

	for _, l := range pool {
		report.UnmatchedLedger = append(report.UnmatchedLedger, ClassifiedLedger{Item: l, Kind: classifyLedger(l, window)})
	}

	m.log.Info("reconciliation run",
		zap.String("bank_account", bankAccountID.String()),
		zap.Int("bank_txns", len(bank)),
		zap.Int("matched", len(report.Matches)),
		zap.Int("unmatched_bank", len(report.UnmatchedBank)),
		zap.Int("unmatched_ledger", len(report.UnmatchedLedger)),
		zap.String("variance", report.Variance.StringFixed(2)),
	)
	return report, nil
}

func (m *Matcher) band(confidence decimal.Decimal) model.MatchBand {
	switch {
	case confidence.GreaterThanOrEqual(m.cfg.AutoFloor):
		return model.BandAuto
	case confidence.GreaterThanOrEqual(m.cfg.SuggestFloor):
		return model.BandSuggested
	default:
		return model.BandLow
	}
}

func remove(pool []LedgerItem, matched []LedgerItem) []LedgerItem {
	taken := make(map[string]bool, len(matched))
	for _, item := range matched {
		taken[item.LineID] = true
	}
	out := pool[:0]
	for _, l := range pool {
		if !taken[l.LineID] {
			out = append(out, l)
		}
	}
	return out
}
