package loader

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/cohortlab/panel-cli/internal/model"
)

// LoadXLSX reads the first sheet of an XLSX workbook into a Dataset. The
// first row is the header; decoding then follows the CSV rules.
func LoadXLSX(path string, opts Options) (*model.Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("loader: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.New("loader: table has no data rows")
	}

	header := rowToStrings(sheet.Rows[0])
	records := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		records = append(records, rowToStrings(row))
	}

	return fromRecords(header, records, opts)
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
