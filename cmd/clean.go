package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cohortlab/panel-cli/internal/config"
	"github.com/cohortlab/panel-cli/internal/fetcher"
	"github.com/cohortlab/panel-cli/internal/loader"
	"github.com/cohortlab/panel-cli/internal/model"
	"github.com/cohortlab/panel-cli/internal/panel"
	"github.com/cohortlab/panel-cli/internal/report"
	"github.com/cohortlab/panel-cli/internal/writer"
)

var (
	cleanInput  string
	cleanOutput string
	cleanSave   bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Normalize missing codes and derive panel variables",
	Long:  "Loads a long-format panel table (local CSV/XLSX or http/ftp URL), recodes negative missing-value sentinels to absent, derives time index, baseline change, cumulative counts, composite scores, and quartile ranks, and writes the cleaned table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		input := cleanInput
		if fetcher.IsRemote(input) {
			dir, err := os.MkdirTemp("", "panel-fetch-*")
			if err != nil {
				return eris.Wrap(err, "clean: create temp dir")
			}
			defer os.RemoveAll(dir) //nolint:errcheck

			local, err := fetcher.FetchToFile(ctx, input, dir, fetcher.Options{
				UserAgent:         cfg.Fetch.UserAgent,
				Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
				RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			})
			if err != nil {
				return err
			}
			input = local
		}

		spec, err := buildSpec(cfg.Derive)
		if err != nil {
			return err
		}

		ds, err := loader.Load(input, loader.Options{
			SubjectColumn: cfg.Input.SubjectColumn,
			WaveColumn:    cfg.Input.WaveColumn,
			Required: []string{
				spec.ScaleColumn, spec.StatusColumn,
				spec.ClosenessColumn, spec.ConflictColumn, spec.RankColumn,
			},
		})
		if err != nil {
			return err
		}

		normalized, normStats := panel.Normalize(ds)

		cleaned, deriveStats, err := panel.Derive(ctx, normalized, spec)
		if err != nil {
			return err
		}

		diag := &model.Diagnostics{
			Rows:            len(cleaned.Rows),
			Subjects:        deriveStats.Subjects,
			RecodedCells:    normStats.Recoded,
			RecodedByColumn: normStats.ByColumn,
			UnmappedWaves:   deriveStats.UnmappedWaves,
			DuplicateWaves:  deriveStats.DuplicateWaves,
			RankedSubjects:  deriveStats.RankedSubjects,
		}

		if err := writer.WriteCSV(cleaned, cfg.Input.SubjectColumn, cfg.Input.WaveColumn, cleanOutput); err != nil {
			return err
		}
		zap.L().Info("clean: wrote cleaned panel",
			zap.String("path", cleanOutput),
			zap.Int("rows", diag.Rows),
			zap.Int("subjects", diag.Subjects),
		)

		fmt.Fprint(os.Stderr, report.Format(diag))

		if cleanSave {
			if err := persistRun(ctx, cleanInput, cleaned, diag); err != nil {
				return err
			}
		}
		return nil
	},
}

// buildSpec converts the string-keyed wave map from config into the derive
// spec. Viper lowercases map keys, so they arrive as strings either way.
func buildSpec(dc config.DeriveConfig) (panel.Spec, error) {
	waveTimes := make(map[int]int, len(dc.WaveTimes))
	for k, t := range dc.WaveTimes {
		wave, err := strconv.Atoi(k)
		if err != nil {
			return panel.Spec{}, eris.Errorf("clean: non-integer wave %q in wave_times", k)
		}
		waveTimes[wave] = t
	}
	return panel.Spec{
		ScaleColumn:     dc.ScaleColumn,
		StatusColumn:    dc.StatusColumn,
		StatusThreshold: dc.StatusThreshold,
		ClosenessColumn: dc.ClosenessColumn,
		ConflictColumn:  dc.ConflictColumn,
		RankColumn:      dc.RankColumn,
		BaselineWave:    dc.BaselineWave,
		WaveTimes:       waveTimes,
	}, nil
}

// persistRun records the run and its cleaned rows in the configured store.
func persistRun(ctx context.Context, source string, ds *model.Dataset, diag *model.Diagnostics) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	run, err := st.CreateRun(ctx, source, ds.Columns, diag)
	if err != nil {
		return err
	}
	n, err := st.SaveRows(ctx, run.ID, ds)
	if err != nil {
		return err
	}
	zap.L().Info("clean: persisted run",
		zap.String("run_id", run.ID),
		zap.Int("rows", n),
	)
	fmt.Fprintf(os.Stderr, "run id: %s\n", run.ID)
	return nil
}

func init() {
	cleanCmd.Flags().StringVar(&cleanInput, "input", "", "panel table to clean (path or http/ftp URL)")
	cleanCmd.Flags().StringVar(&cleanOutput, "output", "cleaned.csv", "output CSV path")
	cleanCmd.Flags().BoolVar(&cleanSave, "save", false, "persist the run and cleaned rows to the store")
	_ = cleanCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(cleanCmd)
}
