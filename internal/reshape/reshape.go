// Package reshape converts a wide survey extract (one row per child, with
// wave-coded column names like X2FSSCAL2/X4FSSCAL2/X9FSSCAL2) into the long
// panel the cleaning pipeline consumes: one row per (child, wave).
package reshape

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Mapping declares how wide columns fold into long variables. It is supplied
// as a YAML file so the variable crosswalk lives next to the data, not in
// code.
type Mapping struct {
	// SubjectColumn is the child identifier column in the wide table.
	SubjectColumn string `yaml:"subject_column"`
	// Waves lists the measurement occasions to emit, in output order.
	Waves []int `yaml:"waves"`
	// TimeInvariant columns are copied unchanged onto every wave's row.
	TimeInvariant []string `yaml:"time_invariant"`
	// Variables maps each long variable name to its wave-specific wide
	// column. A variable with no entry for a wave is empty at that wave.
	Variables map[string]map[int]string `yaml:"variables"`
}

// LoadMapping reads and validates a mapping YAML file.
func LoadMapping(path string) (*Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "reshape: read mapping")
	}

	var m Mapping
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrap(err, "reshape: parse mapping")
	}

	if m.SubjectColumn == "" {
		return nil, eris.New("reshape: mapping has no subject_column")
	}
	if len(m.Waves) == 0 {
		return nil, eris.New("reshape: mapping has no waves")
	}
	if len(m.Variables) == 0 {
		return nil, eris.New("reshape: mapping has no variables")
	}
	return &m, nil
}

// variableNames returns the long variable names in deterministic order.
func (m *Mapping) variableNames() []string {
	names := make([]string, 0, len(m.Variables))
	for name := range m.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply folds the wide records into long form. The output header is the
// subject column, the time-invariant columns, "wave", then the variables in
// sorted order. Wide columns named by the mapping but missing from the input
// produce empty cells, matching how incomplete waves behave in the source
// study files.
func (m *Mapping) Apply(header []string, records [][]string) ([]string, [][]string, error) {
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(col)] = i
	}

	if _, ok := colIdx[m.SubjectColumn]; !ok {
		return nil, nil, eris.Errorf("reshape: wide table missing subject column %q", m.SubjectColumn)
	}
	for _, col := range m.TimeInvariant {
		if _, ok := colIdx[col]; !ok {
			return nil, nil, eris.Errorf("reshape: wide table missing time-invariant column %q", col)
		}
	}

	variables := m.variableNames()

	// Count wide columns the mapping expects but the extract lacks; a few is
	// normal (not every variable exists in every release), many suggests the
	// wrong mapping file.
	missing := 0
	for _, name := range variables {
		for _, wideCol := range m.Variables[name] {
			if _, ok := colIdx[wideCol]; !ok {
				missing++
			}
		}
	}
	if missing > 0 {
		zap.L().Warn("reshape: mapped wide columns absent from extract",
			zap.Int("columns", missing),
		)
	}

	outHeader := append([]string{m.SubjectColumn}, m.TimeInvariant...)
	outHeader = append(outHeader, "wave")
	outHeader = append(outHeader, variables...)

	out := make([][]string, 0, len(records)*len(m.Waves))
	for _, record := range records {
		for _, wave := range m.Waves {
			row := make([]string, 0, len(outHeader))
			row = append(row, getCell(record, colIdx, m.SubjectColumn))
			for _, col := range m.TimeInvariant {
				row = append(row, getCell(record, colIdx, col))
			}
			row = append(row, strconv.Itoa(wave))
			for _, name := range variables {
				wideCol, ok := m.Variables[name][wave]
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, getCell(record, colIdx, wideCol))
			}
			out = append(out, row)
		}
	}

	return outHeader, out, nil
}

// ReshapeCSV reads the wide CSV, applies the mapping, and writes the long CSV.
func ReshapeCSV(mappingPath, widePath, outPath string) error {
	m, err := LoadMapping(mappingPath)
	if err != nil {
		return err
	}

	f, err := os.Open(widePath)
	if err != nil {
		return eris.Wrap(err, "reshape: open wide csv")
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return eris.Wrap(err, "reshape: read wide csv")
	}
	if len(records) < 2 {
		return eris.New("reshape: wide table has no data rows")
	}

	header, rows, err := m.Apply(records[0], records[1:])
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return eris.Wrap(err, "reshape: create output")
	}
	defer out.Close() //nolint:errcheck

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "reshape: write header")
	}
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrap(err, "reshape: write rows")
	}
	w.Flush()

	zap.L().Info("reshape: wrote long panel",
		zap.String("path", outPath),
		zap.Int("children", len(records)-1),
		zap.Int("waves", len(m.Waves)),
		zap.Int("rows", len(rows)),
	)
	return eris.Wrap(w.Error(), "reshape: flush output")
}

func getCell(record []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
