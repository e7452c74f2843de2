package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// TooFewLinesError: a journal entry needs at least two lines.
type TooFewLinesError struct {
	Count int
}

func (e TooFewLinesError) Error() string {
	return fmt.Sprintf("transaction has %d line(s), at least 2 required", e.Count)
}

// UnbalancedError: debits and credits differ by more than tolerance.
type UnbalancedError struct {
	Difference decimal.Decimal
}

func (e UnbalancedError) Error() string {
	return fmt.Sprintf("transaction out of balance by $%s", e.Difference.StringFixed(2))
}

// EmptyLineError: a line carries neither a debit nor a credit.
type EmptyLineError struct {
	Index int
}

func (e EmptyLineError) Error() string {
	return fmt.Sprintf("line %d has neither debit nor credit", e.Index)
}

// DualSidedLineError: a line carries both a debit and a credit.
type DualSidedLineError struct {
	Index int
}

func (e DualSidedLineError) Error() string {
	return fmt.Sprintf("line %d has both debit and credit", e.Index)
}

// Reasons for InvalidAccountError.
const (
	AccountReasonNotFound = "not found"
	AccountReasonInactive = "inactive"
	AccountReasonHeader   = "header account"
)

// InvalidAccountError: a line references an account that cannot receive
// postings.
type InvalidAccountError struct {
	Code   string
	Reason string
}

func (e InvalidAccountError) Error() string {
	return fmt.Sprintf("account %s: %s", e.Code, e.Reason)
}

// PeriodClosedError: the transaction date resolves to no open period.
type PeriodClosedError struct {
	PeriodID uuid.UUID
	Date     time.Time
	Status   PeriodStatus
}

func (e PeriodClosedError) Error() string {
	if e.PeriodID == uuid.Nil {
		return fmt.Sprintf("no fiscal period covers %s", e.Date.Format("2006-01-02"))
	}
	return fmt.Sprintf("period %s is %s for %s", e.PeriodID, e.Status, e.Date.Format("2006-01-02"))
}

// RateUnavailableError: no exchange rate could be resolved.
type RateUnavailableError struct {
	From string
	To   string
	Date time.Time
}

func (e RateUnavailableError) Error() string {
	return fmt.Sprintf("no %s/%s rate on or before %s", e.From, e.To, e.Date.Format("2006-01-02"))
}

// PreCloseChecksFailedError lists every unmet pre-close condition.
// These are user-facing review items, so all failures are reported, not
// just the first.
type PreCloseChecksFailedError struct {
	Failed []string
}

func (e PreCloseChecksFailedError) Error() string {
	return "pre-close checks failed: " + strings.Join(e.Failed, ", ")
}

// ConcurrentModificationError: an optimistic-lock conflict on an
// account balance or period status. Retryable after re-reading state.
type ConcurrentModificationError struct {
	Entity string
	ID     uuid.UUID
}

func (e ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

// AmbiguousMatchError: reconciliation found multiple equally confident
// candidates that the tie-break rule could not separate.
type AmbiguousMatchError struct {
	BankExternalID string
	Candidates     []string
}

func (e AmbiguousMatchError) Error() string {
	return fmt.Sprintf("bank transaction %s has %d equally confident candidates", e.BankExternalID, len(e.Candidates))
}

// InvalidTransitionError: an illegal status transition was requested.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}
