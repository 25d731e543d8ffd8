package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-score/internal/config"
	"github.com/sells-group/pe-score/internal/dsscore"
	"github.com/sells-group/pe-score/internal/model"
	"github.com/sells-group/pe-score/internal/raster"
	"github.com/sells-group/pe-score/internal/report"
	"github.com/sells-group/pe-score/internal/resilience"
	"github.com/sells-group/pe-score/internal/store"
)

const (
	noDataSummaryFile = "nodata_summary.csv"
	summaryXLSXFile   = "summary.xlsx"
)

var (
	scoreModel     string
	scoreInputs    string
	scoreOut       string
	scoreClip      string
	scoreWorkers   int
	scoreBlockRows int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a directory of input grids with a DS model",
	Long:  "Evaluates the model over every cell of the input grids, writes one grid per output plus the no-data tally, and records the run in the ledger.",
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

		params := model.RunParams{
			Model:     scoreModel,
			Inputs:    scoreInputs,
			OutputDir: scoreOut,
			Clip:      scoreClip,
			BlockRows: cfg.Engine.BlockRows,
		}
		if params.OutputDir == "" {
			params.OutputDir = cfg.Output.Dir
		}
		if cmd.Flags().Changed("block-rows") {
			params.BlockRows = scoreBlockRows
		}

		run, err := runScore(ctx, cfg, st, params, scoreWorkers)
		if run != nil {
			printRunSummary(os.Stdout, run)
		}
		return err
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreModel, "model", "", "model file (YAML)")
	scoreCmd.Flags().StringVar(&scoreInputs, "inputs", "", "directory of input .asc grids")
	scoreCmd.Flags().StringVar(&scoreOut, "out", "", "output directory (default from config)")
	scoreCmd.Flags().StringVar(&scoreClip, "clip", "", "shapefile of study-area polygons; cells outside are no-data")
	scoreCmd.Flags().IntVar(&scoreWorkers, "workers", 0, "parallel block workers (default from config)")
	scoreCmd.Flags().IntVar(&scoreBlockRows, "block-rows", 0, "raster rows per block, 0 for one block (default from config)")
	_ = scoreCmd.MarkFlagRequired("model")
	_ = scoreCmd.MarkFlagRequired("inputs")
	rootCmd.AddCommand(scoreCmd)
}

// runScore performs one scoring run and records it in the ledger. The run
// is returned whenever it was created, even if scoring failed.
func runScore(ctx context.Context, c *config.Config, st store.Store, params model.RunParams, workers int) (*model.Run, error) {
	raw, compiled, err := loadModel(params.Model)
	if err != nil {
		return nil, err
	}
	stack, err := loadInputs(params.Inputs, params.Clip)
	if err != nil {
		return nil, err
	}

	run, err := st.CreateRun(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "score: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("model", compiled.Name))
	if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return run, eris.Wrap(err, "score: mark running")
	}

	obs := progressObserver(c, log, stack.Rows, stack.Cols, params.BlockRows)
	eng := dsscore.NewEngine(compiled, engineOptions(c, raw, params.BlockRows, workers, obs)...)

	start := time.Now()
	res, runErr := eng.Run(ctx, stack)

	// The ledger is finalised even when ctx was cancelled mid-run.
	lctx := context.WithoutCancel(ctx)
	if res == nil {
		return finishRun(lctx, st, run.ID, model.RunStatusFailed, &model.RunSummary{
			Rows:       stack.Rows,
			Cols:       stack.Cols,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      runErr.Error(),
		}, runErr)
	}

	if err := recordFailures(lctx, st, run.ID, res.Failures); err != nil {
		log.Error("score: record block failures", zap.Error(err))
	}

	status := res.Status()
	var files []string
	if runErr == nil {
		files, runErr = writeOutputs(c, params.OutputDir, res)
	}
	summary := buildSummary(res, files, time.Since(start))
	if runErr != nil {
		status = model.RunStatusFailed
		summary.Error = runErr.Error()
	}

	log.Info("score: run finished",
		zap.String("status", string(status)),
		zap.Int("failed_blocks", summary.FailedBlocks),
		zap.Int64("duration_ms", summary.DurationMs),
	)
	return finishRun(lctx, st, run.ID, status, summary, runErr)
}

// finishRun completes the ledger entry and returns the stored run alongside
// the run's own error, which takes precedence.
func finishRun(ctx context.Context, st store.Store, runID string, status model.RunStatus, summary *model.RunSummary, runErr error) (*model.Run, error) {
	if err := st.CompleteRun(ctx, runID, status, summary); err != nil {
		if runErr != nil {
			zap.L().Error("score: complete run", zap.String("run_id", runID), zap.Error(err))
			return nil, runErr
		}
		return nil, eris.Wrap(err, "score: complete run")
	}
	run, err := st.GetRun(ctx, runID)
	if err != nil && runErr == nil {
		return nil, eris.Wrap(err, "score: reload run")
	}
	return run, runErr
}

// recordFailures adds one ledger entry per failed block. Every failure is
// attempted; the errors are joined.
func recordFailures(ctx context.Context, st store.Store, runID string, fails []dsscore.BlockFailure) error {
	var errs []error
	for _, f := range fails {
		bf := &model.BlockFailure{
			RunID:     runID,
			Block:     f.Block.Index,
			Row0:      f.Block.Row0,
			Rows:      f.Block.Rows,
			Error:     f.Err.Error(),
			ErrorType: resilience.ClassifyError(f.Err),
			Attempts:  f.Attempts,
		}
		if err := st.RecordBlockFailure(ctx, bf); err != nil {
			errs = append(errs, err)
		}
	}
	return eris.Wrap(errors.Join(errs...), "score: record block failures")
}

// writeOutputs writes every result band, the no-data summary and, when
// configured, the statistics workbook. It returns the files written.
func writeOutputs(c *config.Config, dir string, res *dsscore.Result) ([]string, error) {
	files, err := raster.WriteDir(dir, res.Meta, res.Bands()...)
	if err != nil {
		return files, err
	}
	if res.Tally != nil {
		p := filepath.Join(dir, noDataSummaryFile)
		if err := report.WriteNoDataSummary(p, res.Tally); err != nil {
			return files, err
		}
		files = append(files, p)
	}
	if c.Output.SummaryXLSX {
		p := filepath.Join(dir, summaryXLSXFile)
		if err := report.WriteSummaryXLSX(p, scoredBands(res), res.Tally); err != nil {
			return files, err
		}
		files = append(files, p)
	}
	return files, nil
}

// scoredBands returns the output bands and the max band, without the tally.
func scoredBands(res *dsscore.Result) []*raster.Band {
	bands := append([]*raster.Band(nil), res.Outputs...)
	if res.Max != nil {
		bands = append(bands, res.Max)
	}
	return bands
}

func buildSummary(res *dsscore.Result, files []string, elapsed time.Duration) *model.RunSummary {
	s := &model.RunSummary{
		Rows:         res.Rows,
		Cols:         res.Cols,
		Blocks:       len(res.Blocks),
		FailedBlocks: len(res.Failures),
		Files:        files,
		DurationMs:   elapsed.Milliseconds(),
		NoDataCells:  map[string]int{},
		Stats:        map[string]model.Stats{},
	}
	for _, b := range res.Outputs {
		s.Outputs = append(s.Outputs, b.Name)
	}
	for name, st := range report.Summarize(scoredBands(res)...) {
		s.NoDataCells[name] = st.NoData
		s.Stats[name] = ledgerStats(st)
	}
	return s
}

// ledgerStats zeroes the NaN extremes of an all-no-data band, which JSON
// cannot carry.
func ledgerStats(s model.Stats) model.Stats {
	for _, v := range []*float64{&s.Min, &s.Max, &s.Mean} {
		if math.IsNaN(*v) {
			*v = 0
		}
	}
	return s
}

func printRunSummary(w io.Writer, run *model.Run) {
	_, _ = fmt.Fprintf(w, "run %s: %s\n", run.ID, run.Status)
	if run.Summary == nil {
		return
	}
	s := run.Summary
	_, _ = fmt.Fprintf(w, "  grid %dx%d, %d blocks, %d failed, %dms\n", s.Rows, s.Cols, s.Blocks, s.FailedBlocks, s.DurationMs)
	for _, f := range s.Files {
		_, _ = fmt.Fprintf(w, "  wrote %s\n", f)
	}
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "  error: %s\n", s.Error)
	}
}
