package main

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-score/internal/dsscore"
	"github.com/sells-group/pe-score/internal/model"
	"github.com/sells-group/pe-score/internal/raster"
	"github.com/sells-group/pe-score/internal/resilience"
	"github.com/sells-group/pe-score/internal/store"
)

func TestRunScore_EndToEnd(t *testing.T) {
	c := testConfig(t)
	st := openTestStore(t, c)
	params := writeFixture(t, c)

	run, err := runScore(t.Context(), c, st, params, 0)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, params, run.Params)

	require.NotNil(t, run.Summary)
	s := run.Summary
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 3, s.Cols)
	assert.Equal(t, 2, s.Blocks)
	assert.Zero(t, s.FailedBlocks)
	assert.Equal(t, []string{"PE_S"}, s.Outputs)
	assert.Equal(t, 1, s.NoDataCells["PE_S"])
	assert.Equal(t, 1, s.NoDataCells["PE_max"])
	assert.Equal(t, 11, s.Stats["PE_S"].Valid)
	assert.Empty(t, s.Error)

	for _, name := range []string{"PE_S.asc", "nodata_tally.asc", "PE_max.asc", noDataSummaryFile, summaryXLSXFile} {
		p := filepath.Join(params.OutputDir, name)
		assert.FileExists(t, p)
		assert.Contains(t, s.Files, p)
	}

	out := readBand(t, filepath.Join(params.OutputDir, "PE_S.asc"))
	assert.InDelta(t, 2.0/3, out.Data[0], 1e-3)
	assert.InDelta(t, 1.0/3, out.Data[1], 1e-3)
	assert.InDelta(t, 0.5, out.Data[2], 1e-3)
	assert.Equal(t, nd, out.Data[4])

	tally := readBand(t, filepath.Join(params.OutputDir, "nodata_tally.asc"))
	assert.Equal(t, 1.0, tally.Data[4])
	assert.Equal(t, 0.0, tally.Data[0])

	stored, err := st.GetRun(t.Context(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, stored.Status)

	fails, err := st.ListBlockFailures(t.Context(), run.ID, true)
	require.NoError(t, err)
	assert.Empty(t, fails)
}

func TestRunScore_OptionalOutputsOff(t *testing.T) {
	c := testConfig(t)
	c.Output.WriteTally = false
	c.Output.WriteMax = false
	c.Output.SummaryXLSX = false
	st := openTestStore(t, c)
	params := writeFixture(t, c)

	run, err := runScore(t.Context(), c, st, params, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(params.OutputDir, "PE_S.asc")}, run.Summary.Files)
	assert.NoFileExists(t, filepath.Join(params.OutputDir, noDataSummaryFile))
	assert.NoFileExists(t, filepath.Join(params.OutputDir, summaryXLSXFile))
}

func TestRunScore_BadModelCreatesNoRun(t *testing.T) {
	c := testConfig(t)
	st := openTestStore(t, c)
	params := writeFixture(t, c)
	require.NoError(t, os.WriteFile(params.Model, []byte("name: broken\nsets: []\n"), 0o644))

	run, err := runScore(t.Context(), c, st, params, 0)
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "model has no sets")

	runs, err := st.ListRuns(t.Context(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunScore_MissingInputs(t *testing.T) {
	c := testConfig(t)
	st := openTestStore(t, c)
	params := writeFixture(t, c)
	params.Inputs = t.TempDir()

	_, err := runScore(t.Context(), c, st, params, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .asc grids")
}

func TestRecordFailures(t *testing.T) {
	c := testConfig(t)
	st := openTestStore(t, c)
	params := writeFixture(t, c)
	run, err := st.CreateRun(t.Context(), params)
	require.NoError(t, err)

	fails := []dsscore.BlockFailure{
		{Block: raster.Block{Index: 3, Row0: 6, Rows: 2, Cols: 3}, Err: errors.New("bad rule"), Attempts: 1},
		{Block: raster.Block{Index: 1, Row0: 2, Rows: 2, Cols: 3}, Err: resilience.Transient(errors.New("ledger busy")), Attempts: 3},
	}
	require.NoError(t, recordFailures(t.Context(), st, run.ID, fails))

	got, err := st.ListBlockFailures(t.Context(), run.ID, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Block)
	assert.Equal(t, "transient", got[0].ErrorType)
	assert.Equal(t, 3, got[0].Attempts)
	assert.Equal(t, 3, got[1].Block)
	assert.Equal(t, "permanent", got[1].ErrorType)
	assert.Equal(t, 6, got[1].Row0)
	assert.Equal(t, "bad rule", got[1].Error)
}

func TestLedgerStats_ZeroesNaN(t *testing.T) {
	s := ledgerStats(model.Stats{NoData: 4, Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()})
	assert.Equal(t, model.Stats{NoData: 4}, s)

	keep := model.Stats{Valid: 2, Min: 0.1, Max: 0.9, Mean: 0.5}
	assert.Equal(t, keep, ledgerStats(keep))
}
