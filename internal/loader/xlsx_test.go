package loader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTempXLSX(t *testing.T, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("data")
	require.NoError(t, err)

	for _, cells := range rows {
		r := sheet.AddRow()
		for _, c := range cells {
			r.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "panel.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadXLSX(t *testing.T) {
	path := writeTempXLSX(t, [][]string{
		{"childid", "wave", "fs_scale"},
		{"c001", "2", "1.5"},
		{"c001", "4", "-9"},
	})

	ds, err := LoadXLSX(path, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, []string{"fs_scale"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "c001", ds.Rows[0].SubjectID)
	assert.Equal(t, 4, ds.Rows[1].Wave)

	v, ok := ds.Rows[1].Value("fs_scale")
	require.True(t, ok)
	assert.Equal(t, -9.0, v)
}

func TestLoadXLSXHeaderOnly(t *testing.T) {
	path := writeTempXLSX(t, [][]string{{"childid", "wave", "fs_scale"}})
	_, err := LoadXLSX(path, defaultOpts())
	require.Error(t, err)
}

func TestLoadDispatchesXLSX(t *testing.T) {
	path := writeTempXLSX(t, [][]string{
		{"childid", "wave", "fs_scale"},
		{"c001", "2", "1"},
	})
	ds, err := Load(path, defaultOpts())
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 1)
}
