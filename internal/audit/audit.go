package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one immutable row in the audit trail. Every posting, void,
// and period transition records one.
type Entry struct {
	Timestamp  time.Time
	TenantID   string
	Actor      string
	Action     string // e.g. "post", "void", "close_period", "reopen_period"
	EntityType string // "transaction", "period", "fiscal_year", "account"
	EntityID   string
	Before     string // balance or status before the action
	After      string // balance or status after
	Reason     string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,tenant_id,actor,action,entity_type,entity_id,before,after,reason"

const (
	numFields  = 9
	logDir     = "logs"
	logFile    = "logs/audit-log.csv"
	colTime    = 0
	colTenant  = 1
	colActor   = 2
	colAction  = 3
	colEntType = 4
	colEntID   = 5
	colBefore  = 6
	colAfter   = 7
	colReason  = 8
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTime] = e.Timestamp.Format(time.RFC3339)
	row[colTenant] = e.TenantID
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colEntType] = e.EntityType
	row[colEntID] = e.EntityID
	row[colBefore] = e.Before
	row[colAfter] = e.After
	row[colReason] = e.Reason
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	ts, err := time.Parse(time.RFC3339, record[colTime])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTime], err)
	}
	return Entry{
		Timestamp:  ts,
		TenantID:   record[colTenant],
		Actor:      record[colActor],
		Action:     record[colAction],
		EntityType: record[colEntType],
		EntityID:   record[colEntID],
		Before:     record[colBefore],
		After:      record[colAfter],
		Reason:     record[colReason],
	}, nil
}

// Append writes entries to <root>/logs/audit-log.csv, creating the file
// and header if needed. The log is append-only; entries are never
// rewritten.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	return cw.Error()
}

// Read returns all entries from <root>/logs/audit-log.csv, or nil if
// the file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(root, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
