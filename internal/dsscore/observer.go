package dsscore

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pe-score/internal/raster"
)

// Observer receives block progress. Methods are called from worker
// goroutines and must be safe for concurrent use.
type Observer interface {
	BlockStarted(b raster.Block)
	BlockDone(b raster.Block, elapsed time.Duration)
	BlockFailed(b raster.Block, err error, attempts int)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) BlockStarted(raster.Block)             {}
func (NopObserver) BlockDone(raster.Block, time.Duration) {}
func (NopObserver) BlockFailed(raster.Block, error, int)  {}

// LogObserver logs progress through zap, at most once per interval, and
// every failure.
type LogObserver struct {
	log       *zap.Logger
	total     int
	done      atomic.Int64
	failed    atomic.Int64
	sometimes *rate.Sometimes
}

// NewLogObserver returns a LogObserver for a run of total blocks.
func NewLogObserver(log *zap.Logger, total int, interval time.Duration) *LogObserver {
	if log == nil {
		log = zap.L()
	}
	return &LogObserver{
		log:       log,
		total:     total,
		sometimes: &rate.Sometimes{First: 1, Interval: interval},
	}
}

func (o *LogObserver) BlockStarted(b raster.Block) {
	o.log.Debug("dsscore: block started", zap.Int("block", b.Index), zap.Int("row0", b.Row0), zap.Int("rows", b.Rows))
}

func (o *LogObserver) BlockDone(b raster.Block, elapsed time.Duration) {
	n := o.done.Add(1)
	o.sometimes.Do(func() {
		o.log.Info("dsscore: progress",
			zap.Int64("done", n),
			zap.Int64("failed", o.failed.Load()),
			zap.Int("total", o.total),
			zap.Duration("last_block", elapsed),
		)
	})
}

func (o *LogObserver) BlockFailed(b raster.Block, err error, attempts int) {
	o.failed.Add(1)
	o.log.Error("dsscore: block failed",
		zap.Int("block", b.Index),
		zap.Int("row0", b.Row0),
		zap.Int("rows", b.Rows),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
}

// Counts returns the number of blocks done and failed so far.
func (o *LogObserver) Counts() (done, failed int) {
	return int(o.done.Load()), int(o.failed.Load())
}
