package activityfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csgen/Airi/internal/domain"
)

// Classifier maps an application name to a category.
type Classifier interface {
	Categorize(application string) domain.Category
}

// Recategorize rewrites the activity_type column of the file at path using c,
// adding the column when an older file lacks it. It returns how many rows
// changed category.
func Recategorize(path string, c Classifier) (int, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return 0, err
	}
	idx, err := columnIndex(header, ColumnApplication)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	typeCol, ok := idx[ColumnActivityType]
	if !ok {
		header = append(header, ColumnActivityType)
		typeCol = len(header) - 1
	}

	changed := 0
	for i, row := range rows {
		for len(row) <= typeCol {
			row = append(row, "")
		}
		app := ""
		if appCol := idx[ColumnApplication]; appCol < len(row) {
			app = row[appCol]
		}
		category := string(c.Categorize(app))
		if row[typeCol] != category {
			row[typeCol] = category
			changed++
		}
		rows[i] = row
	}
	if err := writeTable(path, header, rows); err != nil {
		return 0, err
	}
	return changed, nil
}

// RepairTimestamps rewrites naive timestamps of the file at path as
// offset-aware timestamps in loc. Timestamps that already carry an offset are
// left untouched. It returns how many rows were rewritten.
func RepairTimestamps(path string, loc *time.Location) (int, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return 0, err
	}
	idx, err := columnIndex(header, ColumnTimestamp)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	col := idx[ColumnTimestamp]

	repaired := 0
	for i, row := range rows {
		if col >= len(row) {
			return 0, fmt.Errorf("%s: line %d: missing %s", path, i+2, ColumnTimestamp)
		}
		raw := strings.TrimSpace(row[col])
		_, err := ParseTimestamp(raw)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNaiveTimestamp) {
			return 0, fmt.Errorf("%s: line %d: %w", path, i+2, err)
		}
		ts, err := parseNaive(raw, loc)
		if err != nil {
			return 0, fmt.Errorf("%s: line %d: %w", path, i+2, err)
		}
		row[col] = FormatTimestamp(ts)
		repaired++
	}
	if repaired == 0 {
		return 0, nil
	}
	if err := writeTable(path, header, rows); err != nil {
		return 0, err
	}
	return repaired, nil
}

func readTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	return all[0], all[1:], nil
}

// writeTable replaces path through a temporary file in the same directory.
func writeTable(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
