package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/panel-cli/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresMigrate(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRun(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "extract.csv", "complete", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := st.CreateRun(context.Background(), "extract.csv", []string{"fs_scale"}, &model.Diagnostics{Rows: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	st, mock := newMockPostgres(t)

	columnsJSON, err := json.Marshal([]string{"fs_scale", "baseline"})
	require.NoError(t, err)
	diagBytes, err := json.Marshal(&model.Diagnostics{Rows: 3, Subjects: 2})
	require.NoError(t, err)
	diagJSON := &diagBytes

	mock.ExpectQuery("SELECT id, source, status, columns, diagnostics, created_at FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "status", "columns", "diagnostics", "created_at"}).
			AddRow("run-1", "extract.csv", "complete", columnsJSON, diagJSON, time.Now().UTC()))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, []string{"fs_scale", "baseline"}, run.Columns)
	require.NotNil(t, run.Diagnostics)
	assert.Equal(t, 2, run.Diagnostics.Subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT id, source, status, columns, diagnostics, created_at FROM runs").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "status", "columns", "diagnostics", "created_at"}))

	_, err := st.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRuns(t *testing.T) {
	st, mock := newMockPostgres(t)

	columnsJSON, err := json.Marshal([]string{"fs_scale"})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, source, status, columns, diagnostics, created_at FROM runs").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "status", "columns", "diagnostics", "created_at"}).
			AddRow("run-1", "a.csv", "complete", columnsJSON, (*[]byte)(nil), time.Now().UTC()).
			AddRow("run-2", "b.csv", "complete", columnsJSON, (*[]byte)(nil), time.Now().UTC()))

	runs, err := st.ListRuns(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a.csv", runs[0].Source)
	assert.Nil(t, runs[0].Diagnostics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRows(t *testing.T) {
	st, mock := newMockPostgres(t)

	ds := &model.Dataset{
		Columns: []string{"fs_scale"},
		Rows: []model.Row{
			{SubjectID: "c001", Wave: 2, Values: map[string]float64{"fs_scale": 1.5}},
			{SubjectID: "c002", Wave: 2, Values: map[string]float64{}},
		},
	}

	for i, row := range ds.Rows {
		mock.ExpectExec("INSERT INTO run_rows").
			WithArgs("run-1", i, row.SubjectID, row.Wave, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	n, err := st.SaveRows(context.Background(), "run-1", ds)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRows(t *testing.T) {
	st, mock := newMockPostgres(t)

	valsJSON, err := json.Marshal(map[string]float64{"fs_scale": 1.5})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT subject_id, wave, vals FROM run_rows").
		WithArgs("run-1", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"subject_id", "wave", "vals"}).
			AddRow("c001", 2, valsJSON))

	rows, err := st.GetRows(context.Background(), "run-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c001", rows[0].SubjectID)
	assert.Equal(t, 1.5, rows[0].Values["fs_scale"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
