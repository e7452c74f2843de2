package reconcile

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// candidate is one strategy's proposed pairing.
type candidate struct {
	items      []LedgerItem
	kind       model.MatchType
	confidence decimal.Decimal
}

// strategy examines the remaining pool for one bank transaction. All
// strategies are pure: same inputs, same candidate.
type strategy func(bank model.BankTransaction, pool []LedgerItem, cfg Config) (candidate, bool, error)

var (
	confExact       = decimal.NewFromFloat(1.0)
	confFuzzyDate   = decimal.NewFromFloat(0.9)
	confDescription = decimal.NewFromFloat(0.85)
	confSplit       = decimal.NewFromFloat(0.75)
)

// matchExact pairs on identical amount and calendar date.
func matchExact(bank model.BankTransaction, pool []LedgerItem, _ Config) (candidate, bool, error) {
	for _, l := range pool {
		if l.Amount.Equal(bank.Amount) && sameDay(l.Date, bank.Date) {
			return candidate{items: []LedgerItem{l}, kind: model.MatchExact, confidence: confExact}, true, nil
		}
	}
	return candidate{}, false, nil
}

// matchFuzzyDate pairs on identical amount within the date tolerance.
// Among several candidates the closest date wins, then the lower line
// id.
func matchFuzzyDate(bank model.BankTransaction, pool []LedgerItem, cfg Config) (candidate, bool, error) {
	best := -1
	var bestGap time.Duration
	for i, l := range pool {
		if !l.Amount.Equal(bank.Amount) {
			continue
		}
		gap := absDuration(dayGap(l.Date, bank.Date))
		if gap > cfg.DateTolerance {
			continue
		}
		if best < 0 || gap < bestGap || (gap == bestGap && l.LineID < pool[best].LineID) {
			best, bestGap = i, gap
		}
	}
	if best < 0 {
		return candidate{}, false, nil
	}
	return candidate{items: []LedgerItem{pool[best]}, kind: model.MatchFuzzyDate, confidence: confFuzzyDate}, true, nil
}

// matchDescription pairs on description similarity with the amount
// within relative tolerance. The highest similarity wins; ties fall to
// the closest date, then the lower line id.
func matchDescription(bank model.BankTransaction, pool []LedgerItem, cfg Config) (candidate, bool, error) {
	best := -1
	var bestSim float64
	var bestGap time.Duration
	for i, l := range pool {
		if !withinRelative(l.Amount, bank.Amount, cfg.AmountTolerance) {
			continue
		}
		sim := Similarity(l.Description, bank.Description)
		if sim < cfg.SimilarityFloor {
			continue
		}
		gap := absDuration(dayGap(l.Date, bank.Date))
		switch {
		case best < 0, sim > bestSim:
		case sim == bestSim && gap < bestGap:
		case sim == bestSim && gap == bestGap && l.LineID < pool[best].LineID:
		default:
			continue
		}
		best, bestSim, bestGap = i, sim, gap
	}
	if best < 0 {
		return candidate{}, false, nil
	}
	return candidate{items: []LedgerItem{pool[best]}, kind: model.MatchDescription, confidence: confDescription}, true, nil
}

// matchSplit finds a subset of the pool whose amounts sum to the bank
// amount within relative tolerance. The smallest subset wins; two
// distinct subsets of the same size are ambiguous and reported as an
// error rather than silently picking one.
func matchSplit(bank model.BankTransaction, pool []LedgerItem, cfg Config) (candidate, bool, error) {
	for size := 2; size <= cfg.MaxSplit && size <= len(pool); size++ {
		found := findSubsets(pool, size, bank.Amount, cfg.AmountTolerance, 2)
		if len(found) == 1 {
			return candidate{items: found[0], kind: model.MatchSplit, confidence: confSplit}, true, nil
		}
		if len(found) > 1 {
			var ids []string
			for _, subset := range found {
				for _, item := range subset {
					ids = append(ids, item.LineID)
				}
			}
			sort.Strings(ids)
			return candidate{}, false, model.AmbiguousMatchError{BankExternalID: bank.ExternalID, Candidates: ids}
		}
	}
	return candidate{}, false, nil
}

// findSubsets enumerates size-k subsets summing to target within
// tolerance, stopping after limit hits. Pool order is deterministic, so
// enumeration order is too.
func findSubsets(pool []LedgerItem, size int, target, tolerance decimal.Decimal, limit int) [][]LedgerItem {
	var found [][]LedgerItem
	subset := make([]LedgerItem, 0, size)

	var walk func(start int, sum decimal.Decimal)
	walk = func(start int, sum decimal.Decimal) {
		if len(found) >= limit {
			return
		}
		if len(subset) == size {
			if withinRelative(sum, target, tolerance) {
				found = append(found, append([]LedgerItem(nil), subset...))
			}
			return
		}
		for i := start; i <= len(pool)-(size-len(subset)); i++ {
			subset = append(subset, pool[i])
			walk(i+1, sum.Add(pool[i].Amount))
			subset = subset[:len(subset)-1]
		}
	}
	walk(0, decimal.Zero)
	return found
}

// Similarity scores two descriptions in [0,1] by word overlap:
// the shared word count over the larger word set. Case and punctuation
// are ignored.
func Similarity(a, b string) float64 {
	wa := tokenize(a)
	wb := tokenize(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(wa))
	for _, w := range wa {
		seen[w] = true
	}
	shared := 0
	counted := make(map[string]bool, len(wb))
	for _, w := range wb {
		if seen[w] && !counted[w] {
			shared++
			counted[w] = true
		}
	}

	denom := len(wa)
	if len(wb) > denom {
		denom = len(wb)
	}
	return float64(shared) / float64(denom)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func withinRelative(a, b, tolerance decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	bound := b.Abs().Mul(tolerance)
	return diff.LessThanOrEqual(bound)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dayGap(a, b time.Time) time.Duration {
	return a.Truncate(24 * time.Hour).Sub(b.Truncate(24 * time.Hour))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
