// Package store persists cleaned panel runs so they can be listed, inspected,
// and served without re-running the pipeline.
package store

import (
	"context"

	"github.com/cohortlab/panel-cli/internal/model"
)

// StoredRow is one cleaned panel row as read back from storage.
type StoredRow struct {
	SubjectID string             `json:"subject_id"`
	Wave      int                `json:"wave"`
	Values    map[string]float64 `json:"values"`
}

// Store defines the persistence interface for the cleaning pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string, columns []string, diag *model.Diagnostics) (*model.Run, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Rows
	SaveRows(ctx context.Context, runID string, ds *model.Dataset) (int, error)
	GetRows(ctx context.Context, runID string, limit, offset int) ([]StoredRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
