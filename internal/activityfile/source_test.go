package activityfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListOrdersByDateWithUndatedFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"activity_2024-01-03.csv", "activity_2024-01-01.csv", "notes.csv", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive_2023-12-31.csv"), 0o755))

	files, err := NewSource(dir).List()
	require.NoError(t, err)
	require.Equal(t, []string{"notes.csv", "activity_2024-01-01.csv", "activity_2024-01-03.csv"}, names(files))
	require.False(t, files[0].Dated)
	require.Equal(t, filepath.Join(dir, "activity_2024-01-01.csv"), files[1].Path)
}

func TestSortBreaksTiesByName(t *testing.T) {
	files := []File{
		{Name: "z_2024-05-01.csv"},
		{Name: "b.csv"},
		{Name: "a_2024-05-01.csv"},
		{Name: "a.csv"},
		{Name: "computer_activity_2023-12-31.csv"},
		{Name: "bogus_2024-13-45.csv"},
	}
	for i := range files {
		files[i].Date, files[i].Dated = ExtractDate(files[i].Name)
	}
	Sort(files)
	require.Equal(t, []string{
		"a.csv", "b.csv", "bogus_2024-13-45.csv",
		"computer_activity_2023-12-31.csv", "a_2024-05-01.csv", "z_2024-05-01.csv",
	}, names(files))
}

func TestExtractDate(t *testing.T) {
	date, ok := ExtractDate("computer_activity_2024-02-29.csv")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), date)

	_, ok = ExtractDate("notes.csv")
	require.False(t, ok)
}

func TestFileNameUsesLocalDate(t *testing.T) {
	day := time.Date(2024, time.January, 1, 23, 59, 0, 0, time.FixedZone("", 8*3600))
	require.Equal(t, "computer_activity_2024-01-01.csv", FileName(day))
	require.Equal(t, filepath.Join("data", "computer_activity_2024-01-01.csv"), PathFor("data", day))
}

func TestListMissingDirectory(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "missing")).List()
	require.Error(t, err)
}

func names(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}
