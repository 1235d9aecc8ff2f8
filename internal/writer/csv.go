// Package writer serializes cleaned panel datasets to tabular sinks.
package writer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/cohortlab/panel-cli/internal/model"
)

// WriteCSV writes the dataset to path: subject and wave identifiers first,
// then every measure column (including derived ones) in dataset order.
// Absent values become empty cells. The file is written via a temp file and
// rename so a failed run leaves no partial table behind.
func WriteCSV(ds *model.Dataset, subjectColumn, waveColumn, path string) error {
	// Same directory as the destination so the rename stays atomic.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".panel-*.csv")
	if err != nil {
		return eris.Wrap(err, "writer: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	w := csv.NewWriter(tmp)

	header := append([]string{subjectColumn, waveColumn}, ds.Columns...)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return eris.Wrap(err, "writer: write header")
	}

	record := make([]string, len(header))
	for _, row := range ds.Rows {
		record[0] = row.SubjectID
		record[1] = strconv.Itoa(row.Wave)
		for i, col := range ds.Columns {
			if v, ok := row.Value(col); ok {
				record[i+2] = strconv.FormatFloat(v, 'g', -1, 64)
			} else {
				record[i+2] = ""
			}
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return eris.Wrap(err, "writer: write row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return eris.Wrap(err, "writer: flush")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "writer: close temp file")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrap(err, "writer: rename into place")
	}
	return nil
}
