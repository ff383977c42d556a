package activityfile

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	filePrefix = "computer_activity_"
	fileExt    = ".csv"
)

var dateToken = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// FileName is the name of the activity file for the local date of day.
func FileName(day time.Time) string {
	return filePrefix + day.Format(time.DateOnly) + fileExt
}

// PathFor joins dir with FileName(day).
func PathFor(dir string, day time.Time) string {
	return filepath.Join(dir, FileName(day))
}

// ExtractDate finds the first YYYY-MM-DD token in name. Names without a
// valid date report false.
func ExtractDate(name string) (time.Time, bool) {
	match := dateToken.FindString(name)
	if match == "" {
		return time.Time{}, false
	}
	date, err := time.Parse(time.DateOnly, match)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// File is one activity file found by a Source.
type File struct {
	Name  string
	Path  string
	Date  time.Time
	Dated bool
}

// Sort orders files by date token, undated files first, then by name.
func Sort(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Dated != b.Dated {
			return !a.Dated
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Name < b.Name
	})
}

// Source lists the activity files in a directory.
type Source struct {
	dir string
}

// NewSource constructs a Source over dir.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the directory the source scans.
func (s *Source) Dir() string {
	return s.dir
}

// List returns every .csv file in the directory in upload order.
func (s *Source) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		date, dated := ExtractDate(entry.Name())
		files = append(files, File{
			Name:  entry.Name(),
			Path:  filepath.Join(s.dir, entry.Name()),
			Date:  date,
			Dated: dated,
		})
	}
	Sort(files)
	return files, nil
}
