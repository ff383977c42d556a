// Package activityfile reads and writes the per-day CSV files the monitor
// records into and the uploader reads from.
package activityfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/csgen/Airi/internal/domain"
)

// Column names in on-disk order.
const (
	ColumnTimestamp    = "timestamp"
	ColumnDuration     = "duration_seconds"
	ColumnApplication  = "application"
	ColumnActivityType = "activity_type"
	ColumnInputCount   = "input_count"
)

// Header is the first row of every activity file.
var Header = []string{ColumnTimestamp, ColumnDuration, ColumnApplication, ColumnActivityType, ColumnInputCount}

// ErrNaiveTimestamp is returned for timestamps without a UTC offset.
var ErrNaiveTimestamp = errors.New("timestamp has no UTC offset")

const timestampLayout = "2006-01-02T15:04:05.999999999-07:00"

var (
	awareLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07:00"}
	naiveLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}
)

// FormatTimestamp renders t as ISO-8601 with a numeric offset.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// ParseTimestamp parses an offset-aware ISO-8601 timestamp, keeping its offset.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range awareLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	if _, err := parseNaive(value, time.UTC); err == nil {
		return time.Time{}, fmt.Errorf("%q: %w", value, ErrNaiveTimestamp)
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

func parseNaive(value string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range naiveLayouts {
		ts, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Encode writes records as CSV rows, preceded by the header when withHeader is set.
func Encode(w io.Writer, records []domain.ActivityRecord, withHeader bool) error {
	return encodeColumns(w, Header, records, withHeader)
}

// encodeColumns writes records with fields laid out in columns order. Columns
// it does not know are left empty.
func encodeColumns(w io.Writer, columns []string, records []domain.ActivityRecord, withHeader bool) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(columns); err != nil {
			return err
		}
	}
	row := make([]string, len(columns))
	for _, r := range records {
		fields := map[string]string{
			ColumnTimestamp:    FormatTimestamp(r.LocalTimestamp),
			ColumnDuration:     strconv.FormatFloat(r.DurationSeconds, 'f', -1, 64),
			ColumnApplication:  r.Application,
			ColumnActivityType: string(r.ActivityType),
			ColumnInputCount:   strconv.Itoa(r.InputCount),
		}
		for i, name := range columns {
			row[i] = fields[columnName(name)]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode parses an activity file. Columns are located by header name.
// An empty input yields no records.
func Decode(r io.Reader) ([]domain.ActivityRecord, error) {
	_, records, err := decodeTable(r)
	return records, err
}

// decodeTable is Decode that also returns the header as found in the file.
func decodeTable(r io.Reader) ([]string, []domain.ActivityRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header, Header...)
	if err != nil {
		return nil, nil, err
	}

	var records []domain.ActivityRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return header, records, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		record, err := decodeRow(row, idx)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
}

func decodeRow(row []string, idx map[string]int) (domain.ActivityRecord, error) {
	field := func(name string) (string, error) {
		i := idx[name]
		if i >= len(row) {
			return "", fmt.Errorf("missing %s", name)
		}
		return row[i], nil
	}

	var record domain.ActivityRecord
	raw, err := field(ColumnTimestamp)
	if err != nil {
		return record, err
	}
	if record.LocalTimestamp, err = ParseTimestamp(raw); err != nil {
		return record, err
	}

	if raw, err = field(ColumnDuration); err != nil {
		return record, err
	}
	if record.DurationSeconds, err = strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
		return record, fmt.Errorf("duration_seconds: %w", err)
	}
	if d := record.DurationSeconds; d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return record, fmt.Errorf("invalid duration_seconds %v", d)
	}

	if record.Application, err = field(ColumnApplication); err != nil {
		return record, err
	}

	if raw, err = field(ColumnActivityType); err != nil {
		return record, err
	}
	if record.ActivityType, err = domain.ParseCategory(strings.TrimSpace(raw)); err != nil {
		return record, err
	}

	if raw, err = field(ColumnInputCount); err != nil {
		return record, err
	}
	if record.InputCount, err = parseCount(raw); err != nil {
		return record, fmt.Errorf("input_count: %w", err)
	}
	return record, nil
}

// parseCount accepts integers and integral floats such as "3.0".
func parseCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative count %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid count %q", raw)
	}
	return int(f), nil
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = columnName(name)
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return idx, nil
}

func columnName(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
}

// Read loads every record of the file at path.
func Read(path string) ([]domain.ActivityRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Append adds records to the file at path, creating it with a header when it
// does not exist. Rows follow the column order of the existing header.
// Records whose dedup key is already in the file, or repeated within records,
// are skipped. It returns how many rows were written.
func Append(path string, records []domain.ActivityRecord) (int, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	header, stored, err := decodeTable(bytes.NewReader(existing))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	seen := make(map[domain.Key]struct{}, len(stored))
	for _, r := range stored {
		seen[r.Key()] = struct{}{}
	}

	fresh := make([]domain.ActivityRecord, 0, len(records))
	for _, r := range records {
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}
	columns, withHeader := header, false
	if header == nil {
		columns, withHeader = Header, true
	}
	if err := encodeColumns(&buf, columns, fresh, withHeader); err != nil {
		return 0, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	return len(fresh), nil
}
