package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJournalRoundTrip(t *testing.T) {
	journal, err := Open(t.TempDir())
	require.NoError(t, err)
	defer journal.Close()

	_, ok := journal.Last(42)
	require.False(t, ok)

	rec := SyncRecord{
		TitleID:  42,
		BuildID:  7,
		Result:   "success",
		Success:  true,
		SyncedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, journal.Record(rec))

	got, ok := journal.Last(42)
	require.True(t, ok)
	require.Equal(t, rec.TitleID, got.TitleID)
	require.Equal(t, rec.BuildID, got.BuildID)
	require.Equal(t, rec.Result, got.Result)
	require.True(t, got.Success)
	require.True(t, rec.SyncedAt.Equal(got.SyncedAt))
}

func TestJournalReplacesRecord(t *testing.T) {
	journal, err := Open(t.TempDir())
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Record(SyncRecord{TitleID: 1, Result: "no response", Success: false}))
	require.NoError(t, journal.Record(SyncRecord{TitleID: 1, Result: "success", Success: true}))

	got, ok := journal.Last(1)
	require.True(t, ok)
	require.True(t, got.Success)
	require.Equal(t, "success", got.Result)
}

func TestJournalForget(t *testing.T) {
	journal, err := Open(t.TempDir())
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Record(SyncRecord{TitleID: 9, Success: true}))
	require.NoError(t, journal.Forget(9))

	_, ok := journal.Last(9)
	require.False(t, ok)
}
