package dsscore

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-score/internal/model"
	"github.com/sells-group/pe-score/internal/raster"
)

// BlockFailure is a block that could not be scored. Its cells are no-data
// in every output.
type BlockFailure struct {
	Block    raster.Block
	Err      error
	Attempts int
}

// Result is the output of a run: one band per model output, plus the
// optional tally and max bands.
type Result struct {
	Meta     raster.Meta
	Rows     int
	Cols     int
	Outputs  []*raster.Band
	Tally    *raster.Band
	Max      *raster.Band
	Blocks   []raster.Block
	Failures []BlockFailure
	Missing  []string
}

func (e *Engine) newResult(meta raster.Meta, rows, cols int) *Result {
	res := &Result{Meta: meta, Rows: rows, Cols: cols, Blocks: raster.Blocks(rows, cols, e.blockRows)}
	for _, o := range e.model.Outputs {
		res.Outputs = append(res.Outputs, raster.NewBand(o.Name, rows, cols, e.noData))
	}
	if e.tally {
		res.Tally = raster.NewBand(TallyBand, rows, cols, e.noData)
	}
	return res
}

// Resume rebuilds a result from previously written output bands so failed
// blocks can be retried into it. The stack must hold a band for every model
// output; the tally band is picked up when present.
func (e *Engine) Resume(outputs *raster.Stack) (*Result, error) {
	res := &Result{
		Meta:   outputs.Meta,
		Rows:   outputs.Rows,
		Cols:   outputs.Cols,
		Blocks: raster.Blocks(outputs.Rows, outputs.Cols, e.blockRows),
	}
	for _, name := range e.model.OutputNames() {
		b, ok := outputs.Band(name)
		if !ok {
			return nil, eris.Errorf("dsscore: resume: output band %q not found", name)
		}
		res.Outputs = append(res.Outputs, b)
	}
	if e.tally {
		if b, ok := outputs.Band(TallyBand); ok {
			res.Tally = b
		} else {
			res.Tally = raster.NewBand(TallyBand, res.Rows, res.Cols, e.noData)
		}
	}
	return res, nil
}

func (r *Result) put(blk raster.Block, out *blockResult) {
	for i, b := range r.Outputs {
		b.Put(blk, out.outputs[i])
	}
	if r.Tally != nil && out.tally != nil {
		r.Tally.Put(blk, out.tally)
	}
}

func (r *Result) clear(blk raster.Block) {
	for _, b := range r.Outputs {
		b.Fill(blk)
	}
	if r.Tally != nil {
		r.Tally.Fill(blk)
	}
}

func (r *Result) finish(maxPrefix string) {
	r.Max = nil
	if maxPrefix == "" || len(r.Outputs) == 0 {
		return
	}
	r.Max = raster.MaxOf(maxPrefix+"max", maxPrefix, r.Outputs, r.Outputs[0].NoData)
}

// Bands returns every band the result carries, outputs first.
func (r *Result) Bands() []*raster.Band {
	out := append([]*raster.Band(nil), r.Outputs...)
	if r.Tally != nil {
		out = append(out, r.Tally)
	}
	if r.Max != nil {
		out = append(out, r.Max)
	}
	return out
}

// Output returns the output band with the given name.
func (r *Result) Output(name string) (*raster.Band, bool) {
	for _, b := range r.Outputs {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Status is complete when every block scored, partial otherwise.
func (r *Result) Status() model.RunStatus {
	if len(r.Failures) > 0 {
		return model.RunStatusPartial
	}
	return model.RunStatusComplete
}

// FailedBlocks returns the blocks listed in Failures.
func (r *Result) FailedBlocks() []raster.Block {
	out := make([]raster.Block, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Block
	}
	return out
}
