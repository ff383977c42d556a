package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csgen/Airi/internal/domain"
)

func TestNewActivityUploadedUsesRecordDate(t *testing.T) {
	local := time.Date(2024, time.January, 1, 23, 30, 0, 0, time.FixedZone("", 8*3600))
	row := domain.Canonical(domain.ActivityRecord{
		LocalTimestamp:  local,
		DurationSeconds: 600,
		Application:     "Visual Studio Code",
		ActivityType:    domain.CategoryWork,
		InputCount:      12,
	}, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC))

	evt := NewActivityUploaded("5f0c4a52-0000-4000-8000-000000000001", row)
	require.Equal(t, "2024-01-01", evt.LocalDate)
	require.Equal(t, "+08:00", evt.TimezoneName)
	require.Equal(t, "work", evt.ActivityType)
	require.NoError(t, evt.Validate())

	body, err := json.Marshal(evt)
	require.NoError(t, err)
	require.Contains(t, string(body), `"local_timestamp":"2024-01-01T23:30:00+08:00"`)
}

func TestValidateCollectsProblems(t *testing.T) {
	err := ActivityUploaded{LocalDate: "01/01/2024", ActivityType: "gaming", DurationSeconds: -1}.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "event_id is required")
	require.Contains(t, err.Error(), "local_date")
	require.Contains(t, err.Error(), "gaming")
	require.Contains(t, err.Error(), "duration_seconds")
}
