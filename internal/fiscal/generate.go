package fiscal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// GenerateYear builds a fiscal year with 12 calendar-month periods, or
// 13 where the last is a zero-length year-end adjustment period on the
// final day. All periods start out future.
func GenerateYear(tenantID uuid.UUID, year int, start time.Time, periodCount int) (model.FiscalYear, error) {
	if periodCount != 12 && periodCount != 13 {
		return model.FiscalYear{}, fmt.Errorf("fiscal year must have 12 or 13 periods, got %d", periodCount)
	}

	fy := model.FiscalYear{
		ID:       uuid.New(),
		TenantID: tenantID,
		Year:     year,
		Start:    start,
		End:      start.AddDate(1, 0, -1),
		Status:   model.PeriodFuture,
	}

	for i := 0; i < 12; i++ {
		pStart := start.AddDate(0, i, 0)
		pEnd := start.AddDate(0, i+1, -1)
		fy.Periods = append(fy.Periods, model.Period{
			ID:           uuid.New(),
			TenantID:     tenantID,
			FiscalYearID: fy.ID,
			Number:       i + 1,
			Name:         pStart.Format("Jan 2006"),
			Start:        pStart,
			End:          pEnd,
			Status:       model.PeriodFuture,
		})
	}

	if periodCount == 13 {
		fy.Periods = append(fy.Periods, model.Period{
			ID:           uuid.New(),
			TenantID:     tenantID,
			FiscalYearID: fy.ID,
			Number:       13,
			Name:         fmt.Sprintf("Adjustments %d", year),
			Start:        fy.End,
			End:          fy.End,
			Status:       model.PeriodFuture,
		})
		// The adjustment period shadows the last day of period 12. Date
		// resolution prefers the lowest-numbered open period, so regular
		// postings land in period 12 until it closes.
	}

	return fy, nil
}
