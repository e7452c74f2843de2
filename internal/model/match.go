package model

import (
	"github.com/shopspring/decimal"
)

// MatchType identifies which matching strategy produced a match.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchFuzzyDate   MatchType = "fuzzy_date"
	MatchDescription MatchType = "description"
	MatchSplit       MatchType = "split"
)

// MatchBand classifies a match by confidence: auto-matched, suggested
// (needs explicit confirmation), or below the suggestion floor.
type MatchBand string

const (
	BandAuto      MatchBand = "auto"
	BandSuggested MatchBand = "suggested"
	BandLow       MatchBand = "low"
)

// ReconciliationMatch pairs one bank transaction with one or more
// journal lines. It is a derived record: it references ledger lines and
// bank transactions but owns neither, and can be rebuilt from source
// data at any time.
type ReconciliationMatch struct {
	BankExternalID string
	LineIDs        []string
	Type           MatchType
	Confidence     decimal.Decimal // in [0, 1]
	Band           MatchBand
}

// UnmatchedKind sub-classifies items left over after matching.
type UnmatchedKind string

const (
	UnmatchedOutstandingCheck UnmatchedKind = "outstanding_check"
	UnmatchedDepositInTransit UnmatchedKind = "deposit_in_transit"
	UnmatchedBankFee          UnmatchedKind = "bank_fee"
	UnmatchedAmbiguous        UnmatchedKind = "ambiguous"
	UnmatchedUncleared        UnmatchedKind = "uncleared"
)
