package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-score/internal/config"
	"github.com/sells-group/pe-score/internal/dsscore"
	"github.com/sells-group/pe-score/internal/fuzzy"
	"github.com/sells-group/pe-score/internal/raster"
	"github.com/sells-group/pe-score/internal/resilience"
	"github.com/sells-group/pe-score/internal/ruleset"
	"github.com/sells-group/pe-score/internal/store"
)

// initStore opens the run ledger and applies its schema.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// loadModel reads and compiles a model file. The decoded model comes back
// too so callers can see which settings the file left unset.
func loadModel(path string) (*ruleset.Model, *ruleset.Compiled, error) {
	m, err := ruleset.Load(path)
	if err != nil {
		return nil, nil, err
	}
	compiled, err := m.Compile()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "compile model %s", path)
	}
	return m, compiled, nil
}

// loadInputs reads the input grids and masks cells outside the clip
// polygons when a shapefile is given.
func loadInputs(dir, clip string) (*raster.Stack, error) {
	stack, err := raster.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if clip == "" {
		return stack, nil
	}
	masked, err := stack.Clip(clip)
	if err != nil {
		return nil, err
	}
	zap.L().Info("clipped inputs to study area",
		zap.String("clip", clip),
		zap.Int("masked_cells", masked),
	)
	return stack, nil
}

// engineOptions maps configuration onto engine options. A model file that
// names its own no-data policy keeps it; otherwise engine.nodata_policy
// applies.
func engineOptions(c *config.Config, m *ruleset.Model, blockRows, workers int, obs dsscore.Observer) []dsscore.Option {
	if workers <= 0 {
		workers = c.Engine.Workers
	}
	retry, breaker := resilience.FromEngineConfig(c.Engine)
	opts := []dsscore.Option{
		dsscore.WithWorkers(workers),
		dsscore.WithBlockRows(blockRows),
		dsscore.WithSampleCount(c.Engine.SampleCount),
		dsscore.WithNoDataValue(c.Output.NoDataValue),
		dsscore.WithTally(c.Output.WriteTally),
		dsscore.WithRetry(retry),
		dsscore.WithBreaker(breaker),
		dsscore.WithObserver(obs),
	}
	if c.Output.WriteMax {
		opts = append(opts, dsscore.WithMaxBand(c.Output.MaxPrefix))
	}
	if m.NoData.Policy == "" {
		if mode, ok := fuzzy.ParseNoDataMode(c.Engine.NoDataPolicy); ok {
			opts = append(opts, dsscore.WithNoDataPolicy(fuzzy.NoDataPolicy{
				Mode:            mode,
				SubstituteValue: c.Engine.NoDataSubstitute,
			}))
		}
	}
	return opts
}

// progressObserver logs block progress for a run of the given shape.
func progressObserver(c *config.Config, log *zap.Logger, rows, cols, blockRows int) dsscore.Observer {
	total := len(raster.Blocks(rows, cols, blockRows))
	return dsscore.NewLogObserver(log, total, time.Duration(c.Engine.ProgressIntervalMs)*time.Millisecond)
}
