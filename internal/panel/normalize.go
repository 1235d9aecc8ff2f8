// Package panel implements the panel-cleaning pipeline: missing-code
// normalization followed by per-subject derived-variable computation.
package panel

import (
	"github.com/cohortlab/panel-cli/internal/model"
)

// NormalizeStats counts the sentinel cells blanked by Normalize.
type NormalizeStats struct {
	Recoded  int
	ByColumn map[string]int
}

// Normalize replaces the survey's negative "missing" sentinel codes (-1, -7,
// -8, -9 and friends) with the explicit absent marker. Any measure value
// strictly below zero is dropped; zero and positive values pass through, so
// re-applying to an already-normalized dataset is a no-op. Identifiers and
// the wave marker are never touched. The input dataset is left unmodified.
func Normalize(ds *model.Dataset) (*model.Dataset, NormalizeStats) {
	out := ds.Clone()
	stats := NormalizeStats{ByColumn: make(map[string]int)}

	for i := range out.Rows {
		values := out.Rows[i].Values
		for _, col := range out.Columns {
			if v, ok := values[col]; ok && v < 0 {
				delete(values, col)
				stats.Recoded++
				stats.ByColumn[col]++
			}
		}
	}

	return out, stats
}
