package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanonicalUsesRecordOffset(t *testing.T) {
	singapore := time.FixedZone("SGT", 8*3600)
	record := ActivityRecord{
		LocalTimestamp:  time.Date(2024, time.January, 1, 7, 30, 0, 0, singapore),
		DurationSeconds: 15,
		Application:     "Slack",
		ActivityType:    CategoryWork,
		InputCount:      6,
	}
	imported := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.FixedZone("EDT", -4*3600))

	row := Canonical(record, imported)
	require.Equal(t, "+08:00", row.TimezoneName)
	require.Equal(t, time.Date(2023, time.December, 31, 23, 30, 0, 0, time.UTC), row.TimestampUTC)
	require.Equal(t, time.UTC, row.TimestampUTC.Location())
	require.True(t, row.ImportedAt.Equal(imported))
	require.Equal(t, record.Key(), row.Key())
	require.Equal(t, 6, row.InputCount)
}

func TestTransient(t *testing.T) {
	require.NoError(t, Transient(nil))

	cause := errors.New("connection refused")
	err := fmt.Errorf("insert: %w", Transient(cause))
	require.ErrorIs(t, err, ErrTransient)
	require.ErrorIs(t, err, cause)
	require.EqualError(t, err, "insert: connection refused")
	require.NotErrorIs(t, cause, ErrTransient)
}
