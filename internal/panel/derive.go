package panel

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cohortlab/panel-cli/internal/model"
)

// Derived column names appended by Derive, in output order.
const (
	ColTime      = "time"      // zero-based index of the wave
	ColBaseline  = "baseline"  // subject's first non-absent scale value
	ColChange    = "change"    // scale minus baseline
	ColCumCount  = "cum_count" // running count of qualifying status rows
	ColComposite = "composite" // closeness minus conflict
	ColQuartile  = "quartile"  // cross-sectional quartile of the rank column
)

// DerivedColumns lists the columns Derive appends, in order.
var DerivedColumns = []string{ColTime, ColBaseline, ColChange, ColCumCount, ColComposite, ColQuartile}

// Spec names the designated input columns and constants for Derive.
type Spec struct {
	// ScaleColumn feeds baseline and change (e.g. fs_scale).
	ScaleColumn string
	// StatusColumn feeds the cumulative event count; a row qualifies when the
	// status is present and >= StatusThreshold (fs_status >= 2 marks a
	// food-insecure wave).
	StatusColumn    string
	StatusThreshold float64
	// ClosenessColumn and ConflictColumn feed the composite relationship
	// quality score (closeness - conflict).
	ClosenessColumn string
	ConflictColumn  string
	// RankColumn is quartile-binned cross-sectionally at BaselineWave
	// (e.g. ses at wave 2).
	RankColumn   string
	BaselineWave int
	// WaveTimes maps known wave values to zero-based time indices. Waves
	// outside the map yield an absent time and are counted, not coerced.
	WaveTimes map[int]int
}

// DeriveStats counts the recoverable conditions observed during derivation.
type DeriveStats struct {
	Subjects       int
	UnmappedWaves  int
	DuplicateWaves int
	RankedSubjects int
}

// validate checks that every designated column exists in the dataset.
// A missing column is a schema error and aborts before any output.
func (s Spec) validate(ds *model.Dataset) error {
	for _, col := range []string{s.ScaleColumn, s.StatusColumn, s.ClosenessColumn, s.ConflictColumn, s.RankColumn} {
		if col == "" {
			return eris.New("derive: designated column name is empty")
		}
		if !ds.HasColumn(col) {
			return eris.Errorf("derive: required column %q not in dataset", col)
		}
	}
	if len(s.WaveTimes) == 0 {
		return eris.New("derive: wave/time mapping is empty")
	}
	return nil
}

// Derive computes the derived fields of the cleaned panel: time index,
// baseline-anchored change, cumulative event count, composite quality, and
// cross-sectional quartile rank. Rows are partitioned by subject and each
// partition is processed in wave order, with original input order as the
// stable tie-break for duplicate waves. The input dataset must already be
// normalized; derivation never fails on absent values, only on schema errors.
func Derive(ctx context.Context, ds *model.Dataset, spec Spec) (*model.Dataset, DeriveStats, error) {
	if err := spec.validate(ds); err != nil {
		return nil, DeriveStats{}, err
	}

	out := ds.Clone()
	out.Columns = append(out.Columns, DerivedColumns...)

	// Global pass first: the quartile cut needs the whole cross-section and
	// must not race with the per-subject folds.
	quartiles := rankQuartiles(ds, spec.RankColumn, spec.BaselineWave)

	// Partition row indices by subject, preserving first-seen subject order
	// and input order within each partition.
	order := make([]string, 0)
	partitions := make(map[string][]int)
	for i, r := range ds.Rows {
		if _, ok := partitions[r.SubjectID]; !ok {
			order = append(order, r.SubjectID)
		}
		partitions[r.SubjectID] = append(partitions[r.SubjectID], i)
	}

	var unmapped, duplicates atomic.Int64

	// Each subject's derived fields depend only on its own rows, and every
	// goroutine writes to a disjoint set of out.Rows entries.
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, subject := range order {
		indices := partitions[subject]
		g.Go(func() error {
			deriveSubject(out, indices, spec, quartiles, &unmapped, &duplicates)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, DeriveStats{}, eris.Wrap(ctx.Err(), "derive: cancelled")
	}

	stats := DeriveStats{
		Subjects:       len(order),
		UnmappedWaves:  int(unmapped.Load()),
		DuplicateWaves: int(duplicates.Load()),
		RankedSubjects: len(quartiles),
	}

	if stats.UnmappedWaves > 0 {
		zap.L().Warn("derive: waves outside the known set",
			zap.Int("rows", stats.UnmappedWaves),
		)
	}
	if stats.DuplicateWaves > 0 {
		zap.L().Warn("derive: duplicate subject/wave pairs retained with input-order tie-break",
			zap.Int("rows", stats.DuplicateWaves),
		)
	}

	return out, stats, nil
}

// deriveSubject folds over one subject's rows in wave order, writing the
// derived fields into the output rows at the given indices.
func deriveSubject(out *model.Dataset, indices []int, spec Spec, quartiles map[string]int, unmapped, duplicates *atomic.Int64) {
	// Sort by wave ascending; sort.SliceStable keeps input order for
	// duplicate waves so reruns are reproducible.
	ordered := append([]int(nil), indices...)
	sort.SliceStable(ordered, func(a, b int) bool {
		return out.Rows[ordered[a]].Wave < out.Rows[ordered[b]].Wave
	})

	// Baseline: first non-absent scale value in wave order, fixed once for
	// the whole subject.
	var baseline float64
	hasBaseline := false
	for _, idx := range ordered {
		if v, ok := out.Rows[idx].Value(spec.ScaleColumn); ok {
			baseline = v
			hasBaseline = true
			break
		}
	}

	subject := out.Rows[ordered[0]].SubjectID
	quartile, ranked := quartiles[subject]

	cum := 0
	prevWave := 0
	for i, idx := range ordered {
		row := &out.Rows[idx]

		if i > 0 && row.Wave == prevWave {
			duplicates.Add(1)
		}
		prevWave = row.Wave

		if t, ok := spec.WaveTimes[row.Wave]; ok {
			row.Values[ColTime] = float64(t)
		} else {
			unmapped.Add(1)
		}

		if hasBaseline {
			row.Values[ColBaseline] = baseline
			if v, ok := row.Value(spec.ScaleColumn); ok {
				row.Values[ColChange] = v - baseline
			}
		}

		if v, ok := row.Value(spec.StatusColumn); ok && v >= spec.StatusThreshold {
			cum++
		}
		row.Values[ColCumCount] = float64(cum)

		closeness, okClose := row.Value(spec.ClosenessColumn)
		conflict, okConf := row.Value(spec.ConflictColumn)
		if okClose && okConf {
			row.Values[ColComposite] = closeness - conflict
		}

		if ranked {
			row.Values[ColQuartile] = float64(quartile)
		}
	}
}
