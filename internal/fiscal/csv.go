package fiscal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tallybook-dev/tallybook/internal/model"
)

// The periods CSV stores one row per period; year-level fields are
// repeated on every row and regrouped on read.

const (
	numFields     = 13
	dateFormat    = "2006-01-02"
	colYearID     = 0
	colTenant     = 1
	colYear       = 2
	colYearStart  = 3
	colYearEnd    = 4
	colYearStatus = 5
	colPeriodID   = 6
	colNumber     = 7
	colName       = 8
	colStart      = 9
	colEnd        = 10
	colStatus     = 11
	colVersion    = 12
)

var header = []string{
	"year_id", "tenant_id", "year", "year_start", "year_end", "year_status",
	"period_id", "number", "name", "start", "end", "status", "version",
}

// WriteYears writes fiscal years as periods CSV rows.
func WriteYears(w io.Writer, years []model.FiscalYear) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, fy := range years {
		for _, p := range fy.Periods {
			row := make([]string, numFields)
			row[colYearID] = fy.ID.String()
			row[colTenant] = fy.TenantID.String()
			row[colYear] = strconv.Itoa(fy.Year)
			row[colYearStart] = fy.Start.Format(dateFormat)
			row[colYearEnd] = fy.End.Format(dateFormat)
			row[colYearStatus] = string(fy.Status)
			row[colPeriodID] = p.ID.String()
			row[colNumber] = strconv.Itoa(p.Number)
			row[colName] = p.Name
			row[colStart] = p.Start.Format(dateFormat)
			row[colEnd] = p.End.Format(dateFormat)
			row[colStatus] = string(p.Status)
			row[colVersion] = strconv.FormatInt(p.Version, 10)
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing period %d of %d: %w", p.Number, fy.Year, err)
			}
		}
	}
	return cw.Error()
}

// ReadYears reads periods CSV rows and regroups them into fiscal years.
func ReadYears(r io.Reader) ([]model.FiscalYear, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading periods CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var years []model.FiscalYear
	index := make(map[uuid.UUID]int)
	for i, rec := range records[1:] {
		fy, p, err := unmarshalPeriodRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		at, seen := index[fy.ID]
		if !seen {
			index[fy.ID] = len(years)
			years = append(years, fy)
			at = len(years) - 1
		}
		years[at].Periods = append(years[at].Periods, p)
	}
	return years, nil
}

func unmarshalPeriodRow(record []string) (model.FiscalYear, model.Period, error) {
	yearID, err := uuid.Parse(record[colYearID])
	if err != nil {
		return model.FiscalYear{}, model.Period{}, fmt.Errorf("parsing year_id %q: %w", record[colYearID], err)
	}
	tenantID, err := uuid.Parse(record[colTenant])
	if err != nil {
		return model.FiscalYear{}, model.Period{}, fmt.Errorf("parsing tenant_id %q: %w", record[colTenant], err)
	}
	periodID, err := uuid.Parse(record[colPeriodID])
	if err != nil {
		return model.FiscalYear{}, model.Period{}, fmt.Errorf("parsing period_id %q: %w", record[colPeriodID], err)
	}

	year, err := strconv.Atoi(record[colYear])
	if err != nil {
		return model.FiscalYear{}, model.Period{}, fmt.Errorf("parsing year %q: %w", record[colYear], err)
	}
	number, err := strconv.Atoi(record[colNumber])
	if err != nil {
		return model.FiscalYear{}, model.Period{}, fmt.Errorf("parsing number %q: %w", record[colNumber], err)
	}
	version, err := strconv.ParseInt(record[colVersion], 10, 64)
	if err != nil {
		return model.FiscalYear{}, model.Period{}, fmt.Errorf("parsing version %q: %w", record[colVersion], err)
	}

	parseDate := func(col int, name string) (time.Time, error) {
		d, err := time.Parse(dateFormat, record[col])
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing %s %q: %w", name, record[col], err)
		}
		return d, nil
	}
	yearStart, err := parseDate(colYearStart, "year_start")
	if err != nil {
		return model.FiscalYear{}, model.Period{}, err
	}
	yearEnd, err := parseDate(colYearEnd, "year_end")
	if err != nil {
		return model.FiscalYear{}, model.Period{}, err
	}
	start, err := parseDate(colStart, "start")
	if err != nil {
		return model.FiscalYear{}, model.Period{}, err
	}
	end, err := parseDate(colEnd, "end")
	if err != nil {
		return model.FiscalYear{}, model.Period{}, err
	}

	fy := model.FiscalYear{
		ID:       yearID,
		TenantID: tenantID,
		Year:     year,
		Start:    yearStart,
		End:      yearEnd,
		Status:   model.PeriodStatus(record[colYearStatus]),
	}
	p := model.Period{
		ID:           periodID,
		TenantID:     tenantID,
		FiscalYearID: yearID,
		Number:       number,
		Name:         record[colName],
		Start:        start,
		End:          end,
		Status:       model.PeriodStatus(record[colStatus]),
		Version:      version,
	}
	return fy, p, nil
}
