package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/pe-score/internal/config"
	"github.com/sells-group/pe-score/internal/model"
	"github.com/sells-group/pe-score/internal/raster"
	"github.com/sells-group/pe-score/internal/store"
)

const nd = -99999.0

var gridMeta = raster.Meta{GeoTransform: [6]float64{0, 1, 0, 4, 0, -1}}

const rampModel = `
name: ramp
sets:
  - name: S
    inputs:
      - name: a
        min: 0
        max: 1
        curves:
          - {name: hi, type: linear}
          - {name: lo, type: linear, params: {x0: 0, y0: 1, x1: 1, y1: 0}}
    results:
      - name: r
        min: 0
        max: 1
        curves:
          - {name: hi, type: linear}
          - {name: lo, type: linear, params: {x0: 0, y0: 1, x1: 1, y1: 0}}
    rules: |
      IF a IS hi THEN r IS hi
      IF a IS lo THEN r IS lo
outputs:
  - name: PE_S
    combine: S
`

// rampInputs is a 4x3 grid with one no-data cell.
var rampInputs = []float64{
	1, 0, 0.5,
	0.25, nd, 0.75,
	0, 1, 0.5,
	0.1, 0.9, 0.3,
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "ledger.db")},
		Log:   config.LogConfig{Level: "info", Format: "json"},
		Server: config.ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Engine: config.EngineConfig{
			Workers:            2,
			BlockRows:          2,
			SampleCount:        200,
			NoDataPolicy:       "propagate",
			MaxAttempts:        1,
			FailureThreshold:   5,
			ProgressIntervalMs: 1000,
		},
		Output: config.OutputConfig{
			Dir:         filepath.Join(dir, "out"),
			NoDataValue: nd,
			WriteTally:  true,
			WriteMax:    true,
			MaxPrefix:   "PE_",
			SummaryXLSX: true,
		},
	}
}

func openTestStore(t *testing.T, c *config.Config) store.Store {
	t.Helper()
	st, err := initStore(t.Context(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// writeFixture writes the ramp model and its input grid, and returns run
// parameters pointing at them.
func writeFixture(t *testing.T, c *config.Config) model.RunParams {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "ramp.yaml")
	require.NoError(t, os.WriteFile(modelPath, []byte(rampModel), 0o644))

	inputs := filepath.Join(dir, "inputs")
	require.NoError(t, os.MkdirAll(inputs, 0o755))
	band := &raster.Band{Name: "a", Rows: 4, Cols: 3, Data: append([]float64(nil), rampInputs...), NoData: nd}
	require.NoError(t, raster.WriteASCII(filepath.Join(inputs, "a.asc"), band, gridMeta))

	return model.RunParams{
		Model:     modelPath,
		Inputs:    inputs,
		OutputDir: c.Output.Dir,
		BlockRows: c.Engine.BlockRows,
	}
}

func readBand(t *testing.T, path string) *raster.Band {
	t.Helper()
	b, _, err := raster.ReadASCII(path)
	require.NoError(t, err)
	return b
}
