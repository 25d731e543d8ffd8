package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-score/internal/config"
	"github.com/sells-group/pe-score/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testParams() model.RunParams {
	return model.RunParams{Model: "models/ree.yaml", Inputs: "grids", OutputDir: "out", BlockRows: 16}
}

// --- Runs ---

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testParams())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, testParams(), got.Params)
	assert.Equal(t, model.RunStatusQueued, got.Status)
	assert.Nil(t, got.Summary)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testParams())
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)

	err = st.UpdateRunStatus(ctx, "missing", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testParams())
	require.NoError(t, err)

	summary := &model.RunSummary{
		Rows: 10, Cols: 8, Blocks: 3, FailedBlocks: 1,
		Outputs:     []string{"PE_DS"},
		NoDataCells: map[string]int{"PE_DS": 12},
		Stats:       map[string]model.Stats{"PE_DS": {Valid: 68, NoData: 12, Min: 0.1, Max: 0.9, Mean: 0.5}},
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusPartial, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPartial, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, *summary, *got.Summary)
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, testParams())
	require.NoError(t, err)
	other := testParams()
	other.Model = "models/other.yaml"
	_, err = st.CreateRun(ctx, other)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusComplete))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	byModel, err := st.ListRuns(ctx, RunFilter{Model: "models/other.yaml"})
	require.NoError(t, err)
	require.Len(t, byModel, 1)
	assert.Equal(t, "models/other.yaml", byModel[0].Params.Model)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	paged, err := st.ListRuns(ctx, RunFilter{Limit: 10, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

// --- Block failures ---

func TestSQLite_BlockFailures(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testParams())
	require.NoError(t, err)

	f2 := &model.BlockFailure{RunID: run.ID, Block: 2, Row0: 32, Rows: 16, Error: "database is locked", ErrorType: "transient", Attempts: 3}
	f0 := &model.BlockFailure{RunID: run.ID, Block: 0, Row0: 0, Rows: 16, Error: "gamma 2 outside [0,1]", ErrorType: "permanent", Attempts: 1}
	require.NoError(t, st.RecordBlockFailure(ctx, f2))
	require.NoError(t, st.RecordBlockFailure(ctx, f0))
	assert.NotEmpty(t, f2.ID)
	assert.False(t, f2.CreatedAt.IsZero())

	open, err := st.ListBlockFailures(ctx, run.ID, false)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, 0, open[0].Block)
	assert.Equal(t, 2, open[1].Block)
	assert.Equal(t, 32, open[1].Row0)
	assert.Equal(t, 3, open[1].Attempts)
	assert.True(t, open[1].Retryable())
	assert.False(t, open[0].Retryable())
	assert.Nil(t, open[1].ResolvedAt)

	require.NoError(t, st.ResolveBlockFailure(ctx, f2.ID))

	open, err = st.ListBlockFailures(ctx, run.ID, false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, f0.ID, open[0].ID)

	all, err := st.ListBlockFailures(ctx, run.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[1].Resolved)
	assert.NotNil(t, all[1].ResolvedAt)
}

func TestSQLite_ResolveBlockFailure_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.ResolveBlockFailure(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block failure not found: nope")
}

func TestSQLite_ListBlockFailures_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	out, err := st.ListBlockFailures(context.Background(), "no-run", true)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported driver "mongo"`)
}
