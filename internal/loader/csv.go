// Package loader reads raw panel tables into the in-memory Dataset form.
// Schema validation here is deliberately shallow: required columns must be
// present, the wave column must be an integer, and measure cells that do not
// parse as numbers load as absent. Everything else is the pipeline's job.
package loader

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cohortlab/panel-cli/internal/model"
)

// Options configures how a raw table is interpreted.
type Options struct {
	SubjectColumn string
	WaveColumn    string
	// Required lists measure columns that must be present; their absence is
	// a fatal schema error before any transformation runs.
	Required []string
}

// Load reads a panel table, dispatching on file extension (.csv or .xlsx).
func Load(path string, opts Options) (*model.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadXLSX(path, opts)
	default:
		return LoadCSV(path, opts)
	}
}

// LoadCSV reads a CSV panel table into a Dataset.
func LoadCSV(path string, opts Options) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open csv")
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "loader: read csv")
	}
	if len(records) < 2 {
		return nil, eris.New("loader: table has no data rows")
	}

	return fromRecords(records[0], records[1:], opts)
}

// fromRecords decodes a header plus string records into a Dataset. Shared by
// the CSV and XLSX loaders.
func fromRecords(header []string, records [][]string, opts Options) (*model.Dataset, error) {
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(col)] = i
	}

	required := append([]string{opts.SubjectColumn, opts.WaveColumn}, opts.Required...)
	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("loader: missing required column %q", col)
		}
	}

	// Every column other than the identifiers is a numeric measure, kept in
	// header order.
	var columns []string
	for _, col := range header {
		col = strings.TrimSpace(col)
		if col == "" || col == opts.SubjectColumn || col == opts.WaveColumn {
			continue
		}
		columns = append(columns, col)
	}

	ds := &model.Dataset{Columns: columns, Rows: make([]model.Row, 0, len(records))}
	unparsed := 0

	for i, record := range records {
		subject := getCol(record, colIdx, opts.SubjectColumn)
		if subject == "" {
			return nil, eris.Errorf("loader: row %d has empty subject id", i+2)
		}

		waveStr := getCol(record, colIdx, opts.WaveColumn)
		wave, err := strconv.Atoi(waveStr)
		if err != nil {
			return nil, eris.Errorf("loader: row %d has non-integer wave %q", i+2, waveStr)
		}

		values := make(map[string]float64, len(columns))
		for _, col := range columns {
			raw := getCol(record, colIdx, col)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				unparsed++
				continue
			}
			values[col] = v
		}

		ds.Rows = append(ds.Rows, model.Row{SubjectID: subject, Wave: wave, Values: values})
	}

	if unparsed > 0 {
		zap.L().Warn("loader: non-numeric measure cells loaded as absent",
			zap.Int("cells", unparsed),
		)
	}

	return ds, nil
}

// getCol safely retrieves a column value from a record.
func getCol(record []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
