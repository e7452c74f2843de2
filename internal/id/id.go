package id

import (
	"fmt"
	"strconv"
	"strings"
)

// EntryNo identifies a journal entry within a tenant: the posting
// year/month plus a per-month sequence, rendered as "YYYY-MM-NNN".
type EntryNo struct {
	Year  int
	Month int
	Seq   int
}

// String renders the entry number, e.g. "2025-01-001".
func (n EntryNo) String() string {
	return fmt.Sprintf("%04d-%02d-%03d", n.Year, n.Month, n.Seq)
}

// Line returns the id of the i-th line of this entry: the entry number
// with a letter suffix (0='a', 1='b', ...).
func (n EntryNo) Line(i int) string {
	return n.String() + string(rune('a'+i))
}

// Parse reads an entry number, accepting an optional line suffix.
func Parse(s string) (EntryNo, error) {
	parts := strings.SplitN(Base(s), "-", 3)
	if len(parts) != 3 {
		return EntryNo{}, fmt.Errorf("invalid entry number %q", s)
	}

	var n EntryNo
	var err error
	if n.Year, err = strconv.Atoi(parts[0]); err != nil {
		return EntryNo{}, fmt.Errorf("invalid year in entry number %q: %w", s, err)
	}
	if n.Month, err = strconv.Atoi(parts[1]); err != nil {
		return EntryNo{}, fmt.Errorf("invalid month in entry number %q: %w", s, err)
	}
	if n.Seq, err = strconv.Atoi(parts[2]); err != nil {
		return EntryNo{}, fmt.Errorf("invalid sequence in entry number %q: %w", s, err)
	}
	return n, nil
}

// Base strips the line suffix from a line id.
// "2025-01-001a" -> "2025-01-001"
func Base(lineID string) string {
	i := len(lineID)
	for i > 0 && lineID[i-1] >= 'a' && lineID[i-1] <= 'z' {
		i--
	}
	return lineID[:i]
}
