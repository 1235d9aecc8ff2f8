// Package report renders run diagnostics for the terminal.
package report

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cohortlab/panel-cli/internal/model"
)

// Format renders diagnostics as a short human-readable summary. Counts use
// thousand separators since panel extracts routinely run to millions of cells.
func Format(d *model.Diagnostics) string {
	p := message.NewPrinter(language.English)

	var b strings.Builder
	p.Fprintf(&b, "rows:             %d\n", d.Rows)
	p.Fprintf(&b, "subjects:         %d\n", d.Subjects)
	p.Fprintf(&b, "recoded cells:    %d\n", d.RecodedCells)

	if len(d.RecodedByColumn) > 0 {
		cols := make([]string, 0, len(d.RecodedByColumn))
		for col := range d.RecodedByColumn {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			p.Fprintf(&b, "  %-16s%d\n", col+":", d.RecodedByColumn[col])
		}
	}

	p.Fprintf(&b, "unmapped waves:   %d\n", d.UnmappedWaves)
	p.Fprintf(&b, "duplicate waves:  %d\n", d.DuplicateWaves)
	p.Fprintf(&b, "ranked subjects:  %d\n", d.RankedSubjects)
	return b.String()
}
