package panel

import (
	"sort"

	"github.com/cohortlab/panel-cli/internal/model"
)

// rankQuartiles bins each subject's baseline-wave value of col into four
// cross-sectional groups, 1 = lowest to 4 = highest. The cut is rank-based:
// subjects are stably sorted by value with original row order breaking ties,
// then split so bin sizes differ by at most one regardless of ties. Subjects
// with no present value at the baseline wave are omitted; a duplicated
// baseline wave contributes only its first present value in input order.
func rankQuartiles(ds *model.Dataset, col string, baselineWave int) map[string]int {
	type entry struct {
		subject string
		value   float64
	}

	seen := make(map[string]bool)
	var entries []entry
	for _, r := range ds.Rows {
		if r.Wave != baselineWave || seen[r.SubjectID] {
			continue
		}
		v, ok := r.Value(col)
		if !ok {
			continue
		}
		seen[r.SubjectID] = true
		entries = append(entries, entry{subject: r.SubjectID, value: v})
	}

	if len(entries) == 0 {
		return map[string]int{}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].value < entries[b].value
	})

	n := len(entries)
	bins := make(map[string]int, n)
	for i, e := range entries {
		bins[e.subject] = i*4/n + 1
	}
	return bins
}
