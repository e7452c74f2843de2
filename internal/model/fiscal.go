package model

import (
	"time"

	"github.com/google/uuid"
)

// PeriodStatus is the lifecycle state of a fiscal period or year.
// Transitions: future -> open -> closed, with an audited reopen back
// to open.
type PeriodStatus string

const (
	PeriodFuture PeriodStatus = "future"
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

// Period is one accounting period inside a fiscal year.
type Period struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	FiscalYearID uuid.UUID
	Number       int
	Name         string
	Start        time.Time // inclusive
	End          time.Time // inclusive
	Status       PeriodStatus
	Version      int64
}

// Contains reports whether the date falls inside the period.
// Comparison is by calendar day; time-of-day is ignored.
func (p Period) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.Start.Truncate(24*time.Hour)) && !d.After(p.End.Truncate(24*time.Hour))
}

// FiscalYear owns an ordered set of 12 or 13 periods.
type FiscalYear struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Year     int
	Start    time.Time
	End      time.Time
	Status   PeriodStatus
	Periods  []Period
	Version  int64
}

// PeriodFor returns the period containing the date, if any. When two
// periods cover the same day (a 13th adjustment period shadowing the
// year's last day), the lowest-numbered open one wins; if none of the
// covering periods is open, the first is returned so callers can report
// its closed status.
func (fy FiscalYear) PeriodFor(date time.Time) (Period, bool) {
	var first *Period
	for i, p := range fy.Periods {
		if !p.Contains(date) {
			continue
		}
		if p.Status == PeriodOpen {
			return p, true
		}
		if first == nil {
			first = &fy.Periods[i]
		}
	}
	if first != nil {
		return *first, true
	}
	return Period{}, false
}

// AllPeriodsClosed reports whether every contained period is closed.
func (fy FiscalYear) AllPeriodsClosed() bool {
	for _, p := range fy.Periods {
		if p.Status != PeriodClosed {
			return false
		}
	}
	return true
}
