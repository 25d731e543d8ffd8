package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-score/internal/config"
	"github.com/sells-group/pe-score/internal/model"
	"github.com/sells-group/pe-score/internal/raster"
	"github.com/sells-group/pe-score/internal/store"
)

// partialRun scores the fixture, then blanks block 1 of the output and
// records it as failed, leaving the run as a failed block would.
func partialRun(t *testing.T, c *config.Config, st store.Store, errorType string) (*model.Run, []float64) {
	t.Helper()
	params := writeFixture(t, c)
	run, err := runScore(t.Context(), c, st, params, 0)
	require.NoError(t, err)

	outPath := filepath.Join(params.OutputDir, "PE_S.asc")
	out, meta, err := raster.ReadASCII(outPath)
	require.NoError(t, err)
	want := append([]float64(nil), out.Data...)

	blk := raster.Block{Index: 1, Row0: 2, Rows: 2, Cols: 3}
	out.Fill(blk)
	require.NoError(t, raster.WriteASCII(outPath, out, meta))

	require.NoError(t, st.RecordBlockFailure(t.Context(), &model.BlockFailure{
		RunID:     run.ID,
		Block:     blk.Index,
		Row0:      blk.Row0,
		Rows:      blk.Rows,
		Error:     "worker lost",
		ErrorType: errorType,
		Attempts:  3,
	}))
	summary := *run.Summary
	summary.FailedBlocks = 1
	require.NoError(t, st.CompleteRun(t.Context(), run.ID, model.RunStatusPartial, &summary))
	return run, want
}

func TestRetryRun_RestoresFailedBlock(t *testing.T) {
	c := testConfig(t)
	st := openTestStore(t, c)
	run, want := partialRun(t, c, st, "transient")

	got, err := retryRun(t.Context(), c, st, run.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Zero(t, got.Summary.FailedBlocks)

	out := readBand(t, filepath.Join(run.Params.OutputDir, "PE_S.asc"))
	require.Len(t, out.Data, len(want))
	for i := range want {
		assert.InDelta(t, want[i], out.Data[i], 1e-9, "cell %d", i)
	}

	open, err := st.ListBlockFailures(t.Context(), run.ID, false)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := st.ListBlockFailures(t.Context(), run.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved)
}

func TestRetryRun_PermanentFailuresStay(t *testing.T) {
	c := testConfig(t)
	st := openTestStore(t, c)
	run, _ := partialRun(t, c, st, "permanent")

	got, err := retryRun(t.Context(), c, st, run.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPartial, got.Status)

	open, err := st.ListBlockFailures(t.Context(), run.ID, false)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestRetryRun_RejectsCompleteRun(t *testing.T) {
	c := testConfig(t)
	st := openTestStore(t, c)
	params := writeFixture(t, c)
	run, err := runScore(t.Context(), c, st, params, 0)
	require.NoError(t, err)

	_, err = retryRun(t.Context(), c, st, run.ID, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only partial runs")
}

func TestRetryRun_UnknownRun(t *testing.T) {
	c := testConfig(t)
	st := openTestStore(t, c)

	_, err := retryRun(t.Context(), c, st, "missing", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestLedgerBlock(t *testing.T) {
	f := model.BlockFailure{Block: 2, Row0: 4, Rows: 2}
	assert.Equal(t, raster.Block{Index: 2, Row0: 4, Rows: 2, Cols: 7}, ledgerBlock(f, 7))
}
