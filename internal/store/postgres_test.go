package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-score/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "models/ree.yaml", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.RunParams{Model: "models/ree.yaml", Inputs: "grids"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("running", pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "ghost", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: ghost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET summary`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "r1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "r1", model.RunStatusComplete, &model.RunSummary{Blocks: 4})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "params", "status", "summary", "created_at", "updated_at"}).
		AddRow("r1", []byte(`{"model":"m.yaml","block_rows":8}`), "partial", []byte(`{"blocks":3,"failed_blocks":1}`), now, now)
	mock.ExpectQuery(`SELECT id, params, status, summary, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "m.yaml", run.Params.Model)
	assert.Equal(t, 8, run.Params.BlockRows)
	assert.Equal(t, model.RunStatusPartial, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 1, run.Summary.FailedBlocks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, params, status, summary, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "params", "status", "summary", "created_at", "updated_at"}).
		AddRow("r1", []byte(`{"model":"m.yaml"}`), "complete", []byte(`{"blocks":1}`), now, now)
	mock.ExpectQuery(`AND status = \$1 AND model = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("complete", "m.yaml", 5, 10).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete, Model: "m.yaml", Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordBlockFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO block_failures`).
		WithArgs(pgxmock.AnyArg(), "r1", 3, 48, 16, "conn closed", "transient", 3, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	f := &model.BlockFailure{RunID: "r1", Block: 3, Row0: 48, Rows: 16, Error: "conn closed", ErrorType: "transient", Attempts: 3}
	require.NoError(t, s.RecordBlockFailure(context.Background(), f))
	assert.NotEmpty(t, f.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBlockFailures_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM block_failures WHERE run_id = \$1 AND NOT resolved`).
		WithArgs("r1").
		WillReturnError(errors.New("too many clients"))

	_, err := s.ListBlockFailures(context.Background(), "r1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list block failures for run r1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveBlockFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE block_failures SET resolved = true`).
		WithArgs(pgxmock.AnyArg(), "bf1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE block_failures SET resolved = true`).
		WithArgs(pgxmock.AnyArg(), "bf2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.ResolveBlockFailure(context.Background(), "bf1"))
	err := s.ResolveBlockFailure(context.Background(), "bf2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block failure not found: bf2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
