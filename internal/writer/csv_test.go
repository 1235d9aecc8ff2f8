package writer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/panel-cli/internal/model"
)

func TestWriteCSV(t *testing.T) {
	ds := &model.Dataset{
		Columns: []string{"fs_scale", "change"},
		Rows: []model.Row{
			{SubjectID: "c001", Wave: 2, Values: map[string]float64{"fs_scale": 1.5, "change": 0}},
			{SubjectID: "c001", Wave: 4, Values: map[string]float64{"change": -0.5}},
		},
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(ds, "childid", "wave", path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"childid", "wave", "fs_scale", "change"}, records[0])
	assert.Equal(t, []string{"c001", "2", "1.5", "0"}, records[1])
	// Absent values serialize as empty cells.
	assert.Equal(t, []string{"c001", "4", "", "-0.5"}, records[2])
}

func TestWriteCSVLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	ds := &model.Dataset{
		Columns: []string{"x"},
		Rows:    []model.Row{{SubjectID: "a", Wave: 2, Values: map[string]float64{"x": 1}}},
	}

	path := filepath.Join(dir, "out.csv")
	require.NoError(t, WriteCSV(ds, "childid", "wave", path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.csv", entries[0].Name())
}

func TestWriteCSVBadDirectory(t *testing.T) {
	ds := &model.Dataset{Columns: []string{"x"}}
	err := WriteCSV(ds, "childid", "wave", filepath.Join(t.TempDir(), "missing", "out.csv"))
	require.Error(t, err)
}
