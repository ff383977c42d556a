package activityfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csgen/Airi/internal/domain"
)

var (
	sgt = time.FixedZone("", 8*3600)
	est = time.FixedZone("", -5*3600)
)

func sampleRecords() []domain.ActivityRecord {
	return []domain.ActivityRecord{
		{
			LocalTimestamp:  time.Date(2024, time.January, 1, 9, 0, 0, 123456000, sgt),
			DurationSeconds: 42.5,
			Application:     "Visual Studio Code",
			ActivityType:    domain.CategoryWork,
			InputCount:      17,
		},
		{
			LocalTimestamp:  time.Date(2024, time.January, 1, 9, 0, 42, 623456000, sgt),
			DurationSeconds: 3.000001,
			Application:     `Inbox, "urgent" - Outlook`,
			ActivityType:    domain.CategoryWork,
			InputCount:      0,
		},
		{
			LocalTimestamp:  time.Date(2024, time.January, 1, 21, 15, 0, 0, est),
			DurationSeconds: 600,
			Application:     "bilibili 哔哩哔哩",
			ActivityType:    domain.CategoryEntertainment,
			InputCount:      4,
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleRecords(), true))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, len(sampleRecords()))

	for i, want := range sampleRecords() {
		got := decoded[i]
		require.True(t, want.LocalTimestamp.Equal(got.LocalTimestamp), "row %d instant", i)
		require.Equal(t, FormatTimestamp(want.LocalTimestamp), FormatTimestamp(got.LocalTimestamp), "row %d offset", i)
		require.Equal(t, domain.FormatOffset(want.LocalTimestamp), domain.FormatOffset(got.LocalTimestamp))
		require.Equal(t, want.DurationSeconds, got.DurationSeconds)
		require.Equal(t, want.Application, got.Application)
		require.Equal(t, want.ActivityType, got.ActivityType)
		require.Equal(t, want.InputCount, got.InputCount)
		require.Equal(t, want.Key(), got.Key())
	}
}

func TestEncodeWritesIsoTimestamps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleRecords()[:1], true))
	require.Equal(t,
		"timestamp,duration_seconds,application,activity_type,input_count\n"+
			"2024-01-01T09:00:00.123456+08:00,42.5,Visual Studio Code,work,17\n",
		buf.String())
}

func TestDecodeAcceptsPandasOutput(t *testing.T) {
	input := "activity_type,timestamp,application,duration_seconds,input_count\r\n" +
		"social,2024-02-10 08:30:00.5+00:00,WeChat,12.0,3.0\r\n" +
		"other,2024-02-10T08:31:00Z,Notepad,61,0\r\n"

	records, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "WeChat", records[0].Application)
	require.Equal(t, domain.CategorySocial, records[0].ActivityType)
	require.Equal(t, 12.0, records[0].DurationSeconds)
	require.Equal(t, 3, records[0].InputCount)
	require.Equal(t, 500*time.Millisecond, time.Duration(records[0].LocalTimestamp.Nanosecond()))
	require.Equal(t, "+00:00", domain.FormatOffset(records[1].LocalTimestamp))
}

func TestDecodeEmptyInput(t *testing.T) {
	records, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, records)

	records, err = Decode(strings.NewReader(strings.Join(Header, ",") + "\n"))
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestDecodeRejectsMalformedRows(t *testing.T) {
	header := strings.Join(Header, ",") + "\n"
	cases := map[string]string{
		"naive timestamp":  header + "2024-01-01T09:00:00,5,App,other,1\n",
		"bad timestamp":    header + "yesterday,5,App,other,1\n",
		"bad duration":     header + "2024-01-01T09:00:00+08:00,five,App,other,1\n",
		"negative":         header + "2024-01-01T09:00:00+08:00,-5,App,other,1\n",
		"NaN duration":     header + "2024-01-01T09:00:00+08:00,NaN,App,other,1\n",
		"infinite":         header + "2024-01-01T09:00:00+08:00,+Inf,App,other,1\n",
		"unknown category": header + "2024-01-01T09:00:00+08:00,5,App,study,1\n",
		"fractional count": header + "2024-01-01T09:00:00+08:00,5,App,other,1.5\n",
		"short row":        header + "2024-01-01T09:00:00+08:00,5\n",
		"missing column":   "timestamp,duration_seconds,application\n2024-01-01T09:00:00+08:00,5,App\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(input))
			require.Error(t, err)
		})
	}
}

func TestParseTimestampNaive(t *testing.T) {
	_, err := ParseTimestamp("2024-01-01 09:00:00.250")
	require.ErrorIs(t, err, ErrNaiveTimestamp)

	ts, err := ParseTimestamp(" 2024-01-01T09:00:00-05:00 ")
	require.NoError(t, err)
	require.Equal(t, "-05:00", domain.FormatOffset(ts))
}

func TestAppendCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "computer_activity_2024-01-01.csv")
	records := sampleRecords()

	n, err := Append(path, records[:2])
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = Append(path, records[2:])
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := Read(path)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	require.Equal(t, "bilibili 哔哩哔哩", stored[2].Application)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(raw), "timestamp,duration_seconds"), "header written once")
}

func TestAppendSkipsKnownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "computer_activity_2024-01-01.csv")
	records := sampleRecords()

	_, err := Append(path, records)
	require.NoError(t, err)

	again := append([]domain.ActivityRecord(nil), records...)
	again[0].InputCount = 999 // same key, different payload
	again = append(again, again[1])
	n, err := Append(path, again)
	require.NoError(t, err)
	require.Zero(t, n)

	stored, err := Read(path)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	require.Equal(t, 17, stored[0].InputCount)
}

func TestAppendAfterMissingTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "computer_activity_2024-01-01.csv")
	content := strings.Join(Header, ",") + "\n2024-01-01T08:00:00+08:00,5,Terminal,work,2"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	n, err := Append(path, sampleRecords()[:1])
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := Read(path)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "Terminal", stored[0].Application)
	require.Equal(t, "Visual Studio Code", stored[1].Application)
}

func TestAppendFollowsExistingColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "computer_activity_2024-01-01.csv")
	content := "input_count,application,timestamp,activity_type,duration_seconds\n" +
		"2,Terminal,2024-01-01T08:00:00+08:00,work,5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	n, err := Append(path, sampleRecords()[:1])
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := Read(path)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "Terminal", stored[0].Application)
	require.Equal(t, sampleRecords()[0].Key(), stored[1].Key())
	require.Equal(t, sampleRecords()[0].ActivityType, stored[1].ActivityType)
	require.Equal(t, sampleRecords()[0].InputCount, stored[1].InputCount)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), content), "prior rows are preserved")
}

func TestAppendRefusesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "computer_activity_2024-01-01.csv")
	require.NoError(t, os.WriteFile(path, []byte("not,a,header\n1,2,3\n"), 0o644))

	_, err := Append(path, sampleRecords())
	require.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
