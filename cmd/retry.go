package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-score/internal/config"
	"github.com/sells-group/pe-score/internal/dsscore"
	"github.com/sells-group/pe-score/internal/model"
	"github.com/sells-group/pe-score/internal/raster"
	"github.com/sells-group/pe-score/internal/store"
)

var retryWorkers int

var retryCmd = &cobra.Command{
	Use:   "retry <run-id>",
	Short: "Re-score the failed blocks of a partial run",
	Long:  "Reloads a partial run's inputs and written outputs, re-evaluates every unresolved retryable block, and rewrites the outputs in place.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("score"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := retryRun(ctx, cfg, st, args[0], retryWorkers)
		if run != nil {
			printRunSummary(os.Stdout, run)
		}
		return err
	},
}

func init() {
	retryCmd.Flags().IntVar(&retryWorkers, "workers", 0, "parallel block workers (default from config)")
	rootCmd.AddCommand(retryCmd)
}

// retryRun re-evaluates a partial run's retryable block failures. Blocks
// that score are resolved in the ledger; the run becomes complete once no
// unresolved failure is left.
func retryRun(ctx context.Context, c *config.Config, st store.Store, runID string, workers int) (*model.Run, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "retry: load run")
	}
	if run.Status != model.RunStatusPartial {
		return run, eris.Errorf("retry: run %s is %s, only partial runs have blocks to retry", run.ID, run.Status)
	}
	open, err := st.ListBlockFailures(ctx, run.ID, false)
	if err != nil {
		return run, eris.Wrap(err, "retry: list block failures")
	}

	log := zap.L().With(zap.String("run_id", run.ID))
	var retryable []model.BlockFailure
	for _, f := range open {
		if f.Retryable() {
			retryable = append(retryable, f)
		}
	}
	if len(retryable) == 0 {
		log.Info("retry: no retryable block failures", zap.Int("unresolved", len(open)))
		return run, nil
	}

	p := run.Params
	raw, compiled, err := loadModel(p.Model)
	if err != nil {
		return run, err
	}
	stack, err := loadInputs(p.Inputs, p.Clip)
	if err != nil {
		return run, err
	}
	written, err := raster.LoadDir(p.OutputDir)
	if err != nil {
		return run, eris.Wrap(err, "retry: load previous outputs")
	}

	obs := progressObserver(c, log, stack.Rows, stack.Cols, p.BlockRows)
	eng := dsscore.NewEngine(compiled, engineOptions(c, raw, p.BlockRows, workers, obs)...)
	res, err := eng.Resume(written)
	if err != nil {
		return run, err
	}
	for _, f := range open {
		res.Failures = append(res.Failures, dsscore.BlockFailure{
			Block:    ledgerBlock(f, stack.Cols),
			Err:      errors.New(f.Error),
			Attempts: f.Attempts,
		})
	}
	blocks := make([]raster.Block, len(retryable))
	for i, f := range retryable {
		blocks[i] = ledgerBlock(f, stack.Cols)
	}

	log.Info("retry: re-scoring blocks", zap.Int("blocks", len(blocks)))
	start := time.Now()
	again, err := eng.RetryBlocks(ctx, stack, res, blocks)
	if err != nil {
		// Outputs on disk are left as they were.
		return run, err
	}

	failedAgain := map[int]bool{}
	for _, f := range again {
		failedAgain[f.Block.Index] = true
	}
	lctx := context.WithoutCancel(ctx)
	for _, f := range retryable {
		if failedAgain[f.Block] {
			continue
		}
		if err := st.ResolveBlockFailure(lctx, f.ID); err != nil {
			return run, eris.Wrap(err, "retry: resolve block failure")
		}
	}

	files, err := writeOutputs(c, p.OutputDir, res)
	if err != nil {
		return run, err
	}
	summary := buildSummary(res, files, time.Since(start))
	log.Info("retry: finished",
		zap.Int("resolved", len(retryable)-len(again)),
		zap.Int("failed_again", len(again)),
	)
	return finishRun(lctx, st, run.ID, res.Status(), summary, nil)
}

// ledgerBlock rebuilds the raster block a failure was recorded for.
func ledgerBlock(f model.BlockFailure, cols int) raster.Block {
	return raster.Block{Index: f.Block, Row0: f.Row0, Rows: f.Rows, Cols: cols}
}
