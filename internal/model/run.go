package model

import "time"

// RunStatus is the lifecycle state of a cleaning run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Diagnostics aggregates the recoverable conditions observed during a run.
// Fatal errors abort before any output exists, so a stored Diagnostics always
// describes a run that produced a complete cleaned table.
type Diagnostics struct {
	Rows            int            `json:"rows"`
	Subjects        int            `json:"subjects"`
	RecodedCells    int            `json:"recoded_cells"`
	RecodedByColumn map[string]int `json:"recoded_by_column,omitempty"`
	UnmappedWaves   int            `json:"unmapped_waves"`
	DuplicateWaves  int            `json:"duplicate_waves"`
	RankedSubjects  int            `json:"ranked_subjects"`
}

// Run records one execution of the cleaning pipeline.
type Run struct {
	ID          string       `json:"id"`
	Source      string       `json:"source"`
	Status      RunStatus    `json:"status"`
	Columns     []string     `json:"columns"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
