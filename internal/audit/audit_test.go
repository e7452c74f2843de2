package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRead(t *testing.T) {
	root := t.TempDir()

	first := Entry{
		Timestamp:  time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
		TenantID:   "t1",
		Actor:      "alice",
		Action:     "post",
		EntityType: "transaction",
		EntityID:   "2025-01-001",
		Before:     "0.00",
		After:      "100.00",
	}
	require.NoError(t, Append(root, []Entry{first}))

	second := Entry{
		Timestamp:  time.Date(2025, 1, 31, 18, 0, 0, 0, time.UTC),
		TenantID:   "t1",
		Actor:      "bob",
		Action:     "reopen_period",
		EntityType: "period",
		EntityID:   "p1",
		Before:     "closed",
		After:      "open",
		Reason:     "late vendor bill",
	}
	require.NoError(t, Append(root, []Entry{second}))

	entries, err := Read(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, second, entries[1])
}

func TestReadMissingFile(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntryBadRow(t *testing.T) {
	_, err := UnmarshalEntry([]string{"too", "short"})
	assert.Error(t, err)

	row := MarshalEntry(Entry{Timestamp: time.Now()})
	row[colTime] = "yesterday"
	_, err = UnmarshalEntry(row)
	assert.Error(t, err)
}
