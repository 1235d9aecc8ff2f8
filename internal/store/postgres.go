package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cohortlab/panel-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests substitute a mock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, typically a mock in tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'complete',
	columns     JSONB NOT NULL,
	diagnostics JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_rows (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	row_index  INTEGER NOT NULL,
	subject_id TEXT NOT NULL,
	wave       INTEGER NOT NULL,
	vals       JSONB NOT NULL,
	PRIMARY KEY (run_id, row_index)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_rows_subject ON run_rows(run_id, subject_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string, columns []string, diag *model.Diagnostics) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal columns")
	}
	diagJSON, err := json.Marshal(diag)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal diagnostics")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, columns, diagnostics, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, source, string(model.RunStatusComplete), columnsJSON, diagJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var columnsJSON []byte
	var diagJSON *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, source, status, columns, diagnostics, created_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Source, &r.Status, &columnsJSON, &diagJSON, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(columnsJSON, &r.Columns); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal columns")
	}
	if diagJSON != nil {
		r.Diagnostics = &model.Diagnostics{}
		if err := json.Unmarshal(*diagJSON, r.Diagnostics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal diagnostics")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, status, columns, diagnostics, created_at FROM runs
		 ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var columnsJSON []byte
		var diagJSON *[]byte

		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &columnsJSON, &diagJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(columnsJSON, &r.Columns); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal columns")
		}
		if diagJSON != nil {
			r.Diagnostics = &model.Diagnostics{}
			if err := json.Unmarshal(*diagJSON, r.Diagnostics); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal diagnostics")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveRows(ctx context.Context, runID string, ds *model.Dataset) (int, error) {
	for i, row := range ds.Rows {
		valsJSON, err := json.Marshal(row.Values)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal row values")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO run_rows (run_id, row_index, subject_id, wave, vals) VALUES ($1, $2, $3, $4, $5)`,
			runID, i, row.SubjectID, row.Wave, valsJSON,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert row %d", i)
		}
	}
	return len(ds.Rows), nil
}

func (s *PostgresStore) GetRows(ctx context.Context, runID string, limit, offset int) ([]StoredRow, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT subject_id, wave, vals FROM run_rows
		 WHERE run_id = $1 ORDER BY row_index LIMIT $2 OFFSET $3`,
		runID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get rows")
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var sr StoredRow
		var valsJSON []byte
		if err := rows.Scan(&sr.SubjectID, &sr.Wave, &valsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		if err := json.Unmarshal(valsJSON, &sr.Values); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal row values")
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: get rows iterate")
}
