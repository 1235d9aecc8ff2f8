package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cohortlab/panel-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'complete',
	columns     TEXT NOT NULL,
	diagnostics TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_rows (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	row_index  INTEGER NOT NULL,
	subject_id TEXT NOT NULL,
	wave       INTEGER NOT NULL,
	vals       TEXT NOT NULL,
	PRIMARY KEY (run_id, row_index)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_rows_subject ON run_rows(run_id, subject_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string, columns []string, diag *model.Diagnostics) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal columns")
	}
	diagJSON, err := json.Marshal(diag)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal diagnostics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, columns, diagnostics, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, source, string(model.RunStatusComplete), string(columnsJSON), string(diagJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:          id,
		Source:      source,
		Status:      model.RunStatusComplete,
		Columns:     columns,
		Diagnostics: diag,
		CreatedAt:   now,
	}, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, columns, diagnostics, created_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, status, columns, diagnostics, created_at FROM runs
		 ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveRows bulk-inserts the cleaned rows for a run in one transaction.
func (s *SQLiteStore) SaveRows(ctx context.Context, runID string, ds *model.Dataset) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_rows (run_id, row_index, subject_id, wave, vals) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert row")
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range ds.Rows {
		valsJSON, err := json.Marshal(row.Values)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal row values")
		}
		if _, err := stmt.ExecContext(ctx, runID, i, row.SubjectID, row.Wave, string(valsJSON)); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert row %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit rows")
	}
	return len(ds.Rows), nil
}

func (s *SQLiteStore) GetRows(ctx context.Context, runID string, limit, offset int) ([]StoredRow, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id, wave, vals FROM run_rows
		 WHERE run_id = ? ORDER BY row_index LIMIT ? OFFSET ?`,
		runID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get rows")
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var sr StoredRow
		var valsJSON string
		if err := rows.Scan(&sr.SubjectID, &sr.Wave, &valsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		if err := json.Unmarshal([]byte(valsJSON), &sr.Values); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal row values")
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get rows iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var columnsJSON string
	var diagJSON sql.NullString

	err := row.Scan(&r.ID, &r.Source, &r.Status, &columnsJSON, &diagJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(columnsJSON), &r.Columns); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal columns")
	}
	if diagJSON.Valid {
		r.Diagnostics = &model.Diagnostics{}
		if err := json.Unmarshal([]byte(diagJSON.String), r.Diagnostics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal diagnostics")
		}
	}
	return &r, nil
}
