// Package dsscore runs the Data Supporting pass of a PE score: a compiled
// fuzzy-logic model evaluated block by block over a raster stack.
package dsscore

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pe-score/internal/fuzzy"
	"github.com/sells-group/pe-score/internal/raster"
	"github.com/sells-group/pe-score/internal/resilience"
	"github.com/sells-group/pe-score/internal/ruleset"
)

// TallyBand is the name of the per-cell count of missing inputs.
const TallyBand = "nodata_tally"

// Engine evaluates a compiled model over raster stacks. It holds no
// per-run state and may run several stacks concurrently.
type Engine struct {
	model     *ruleset.Compiled
	eval      *fuzzy.Evaluator
	workers   int
	blockRows int
	noData    float64
	tally     bool
	maxPrefix string
	retry     resilience.RetryConfig
	breaker   resilience.CircuitBreakerConfig
	observer  Observer

	// evaluate is swapped in tests to inject block faults.
	evaluate func(in *inputs, blk raster.Block) (*blockResult, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of blocks evaluated at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithBlockRows sets the number of raster rows per block. Zero or less
// evaluates the whole raster as one block.
func WithBlockRows(n int) Option {
	return func(e *Engine) { e.blockRows = n }
}

// WithNoDataValue sets the value written for no-data output cells.
func WithNoDataValue(v float64) Option {
	return func(e *Engine) { e.noData = v }
}

// WithSampleCount sets the implication surface resolution.
func WithSampleCount(n int) Option {
	return func(e *Engine) { e.eval = fuzzy.NewEvaluator(fuzzy.WithNoDataPolicy(e.eval.Policy()), fuzzy.WithSampleCount(n)) }
}

// WithNoDataPolicy overrides the model's no-data policy.
func WithNoDataPolicy(p fuzzy.NoDataPolicy) Option {
	return func(e *Engine) { e.eval = fuzzy.NewEvaluator(fuzzy.WithNoDataPolicy(p), fuzzy.WithSampleCount(e.eval.SampleCount())) }
}

// WithTally toggles the nodata_tally band.
func WithTally(on bool) Option {
	return func(e *Engine) { e.tally = on }
}

// WithMaxBand adds a band named prefix+"max" holding the per-cell maximum of
// every output whose name starts with prefix. An empty prefix disables it.
func WithMaxBand(prefix string) Option {
	return func(e *Engine) { e.maxPrefix = prefix }
}

// WithRetry sets the per-block retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Engine) { e.retry = cfg }
}

// WithBreaker sets the circuit breaker that aborts a run after repeated
// consecutive block failures.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(e *Engine) { e.breaker = cfg }
}

// WithObserver receives block progress events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine returns an Engine for the compiled model.
func NewEngine(m *ruleset.Compiled, opts ...Option) *Engine {
	e := &Engine{
		model:     m,
		eval:      fuzzy.NewEvaluator(fuzzy.WithNoDataPolicy(m.NoData)),
		workers:   runtime.NumCPU(),
		blockRows: 64,
		noData:    -99999,
		tally:     true,
		retry:     resilience.DefaultRetryConfig(),
		breaker:   resilience.DefaultCircuitBreakerConfig(),
		observer:  NopObserver{},
	}
	for _, o := range opts {
		o(e)
	}
	e.evaluate = e.evalBlock
	return e
}

// Model returns the engine's compiled model.
func (e *Engine) Model() *ruleset.Compiled { return e.model }

// Run scores every block of the stack. Blocks that still fail after retries
// are written as no-data and listed in Result.Failures; the run goes on.
// When the circuit breaker opens or ctx is cancelled, Run stops scheduling
// blocks and returns the partial result together with the error.
func (e *Engine) Run(ctx context.Context, stack *raster.Stack) (*Result, error) {
	in, err := e.bind(stack)
	if err != nil {
		return nil, err
	}
	res := e.newResult(stack.Meta, stack.Rows, stack.Cols)
	res.Missing = in.missing

	log := zap.L().With(zap.String("model", e.model.Name), zap.Int("rows", stack.Rows),
		zap.Int("cols", stack.Cols), zap.Int("blocks", len(res.Blocks)))
	log.Info("dsscore: run starting", zap.Int("workers", e.workers))
	start := time.Now()

	err = e.runBlocks(ctx, in, res, res.Blocks)
	res.finish(e.maxPrefix)
	if err != nil {
		return res, err
	}
	log.Info("dsscore: run complete", zap.Int("failed_blocks", len(res.Failures)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// RetryBlocks re-evaluates the listed blocks into an existing result. Cells
// outside those blocks are untouched. It returns the blocks that failed
// again.
func (e *Engine) RetryBlocks(ctx context.Context, stack *raster.Stack, res *Result, blocks []raster.Block) ([]BlockFailure, error) {
	if stack.Rows != res.Rows || stack.Cols != res.Cols {
		return nil, eris.Errorf("dsscore: stack is %dx%d, result is %dx%d", stack.Rows, stack.Cols, res.Rows, res.Cols)
	}
	for _, b := range blocks {
		if b.Row0 < 0 || b.Rows <= 0 || b.Row0+b.Rows > res.Rows || b.Cols != res.Cols {
			return nil, eris.Errorf("dsscore: block %d (rows %d+%d) does not fit a %dx%d result",
				b.Index, b.Row0, b.Rows, res.Rows, res.Cols)
		}
	}
	in, err := e.bind(stack)
	if err != nil {
		return nil, err
	}
	retried := map[int]bool{}
	for _, b := range blocks {
		retried[b.Index] = true
	}
	var kept []BlockFailure
	for _, f := range res.Failures {
		if !retried[f.Block.Index] {
			kept = append(kept, f)
		}
	}
	res.Failures = kept

	err = e.runBlocks(ctx, in, res, blocks)
	res.finish(e.maxPrefix)

	var again []BlockFailure
	for _, f := range res.Failures {
		if retried[f.Block.Index] {
			again = append(again, f)
		}
	}
	return again, err
}

func (e *Engine) runBlocks(ctx context.Context, in *inputs, res *Result, blocks []raster.Block) error {
	cb := resilience.NewCircuitBreaker(e.breaker)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var mu sync.Mutex
	for _, blk := range blocks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e.observer.BlockStarted(blk)
			start := time.Now()

			retry := e.retry
			if retry.OnRetry == nil {
				retry.OnRetry = resilience.RetryLogger("dsscore", "evaluate block", zap.Int("block", blk.Index))
			}
			attempts := 0
			var out *blockResult
			err := cb.Execute(gctx, func(ctx context.Context) error {
				return resilience.Do(ctx, retry, func(context.Context) error {
					attempts++
					var err error
					out, err = e.evaluate(in, blk)
					return err
				})
			})
			switch {
			case errors.Is(err, resilience.ErrCircuitOpen):
				return eris.Wrapf(err, "dsscore: aborting run at block %d after repeated block failures", blk.Index)
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				res.clear(blk)
				mu.Lock()
				res.Failures = append(res.Failures, BlockFailure{Block: blk, Err: err, Attempts: attempts})
				mu.Unlock()
				e.observer.BlockFailed(blk, err, attempts)
				return nil
			}
			res.put(blk, out)
			e.observer.BlockDone(blk, time.Since(start))
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Block.Index < res.Failures[j].Block.Index })
	return err
}
