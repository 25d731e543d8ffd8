package model

import "time"

// RunStatus represents the current state of a scoring run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial" // finished with failed blocks
	RunStatusFailed   RunStatus = "failed"
)

// Terminal reports whether no further work is expected for the run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusComplete, RunStatusPartial, RunStatusFailed:
		return true
	}
	return false
}

// RunParams records what a run was asked to score, so failed blocks can be
// re-evaluated later against the same inputs.
type RunParams struct {
	Model     string `json:"model"`
	Inputs    string `json:"inputs"`
	OutputDir string `json:"output_dir"`
	Clip      string `json:"clip,omitempty"`
	BlockRows int    `json:"block_rows"`
}

// Run represents a single DS scoring pass over a raster stack.
type Run struct {
	ID        string      `json:"id"`
	Params    RunParams   `json:"params"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the final outcome of a run.
type RunSummary struct {
	Rows         int              `json:"rows"`
	Cols         int              `json:"cols"`
	Blocks       int              `json:"blocks"`
	FailedBlocks int              `json:"failed_blocks"`
	Outputs      []string         `json:"outputs"`
	NoDataCells  map[string]int   `json:"nodata_cells,omitempty"` // per output band
	Files        []string         `json:"files,omitempty"`
	DurationMs   int64            `json:"duration_ms"`
	Error        string           `json:"error,omitempty"`
	Stats        map[string]Stats `json:"stats,omitempty"`
}

// Stats summarises the valid cells of one output band.
type Stats struct {
	Valid  int     `json:"valid"`
	NoData int     `json:"nodata"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// BlockFailure is a ledger entry for a block that exhausted its retries.
// The block's cells were written as no-data.
type BlockFailure struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Block      int        `json:"block"`
	Row0       int        `json:"row0"`
	Rows       int        `json:"rows"`
	Error      string     `json:"error"`
	ErrorType  string     `json:"error_type"`
	Attempts   int        `json:"attempts"`
	Resolved   bool       `json:"resolved"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Retryable reports whether re-running the block could succeed.
func (f BlockFailure) Retryable() bool {
	return !f.Resolved && f.ErrorType != "permanent"
}
