package dsscore

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pe-score/internal/fuzzy"
	"github.com/sells-group/pe-score/internal/raster"
)

// inputs are the stack bands bound to the model's declared input names.
type inputs struct {
	names   []string
	bands   map[string]*raster.Band
	missing []string
}

// bind matches model inputs to stack bands by name. A declared input with
// no band is bound to an all-no-data shim so rules that need it fall back
// on the no-data policy; a stack providing none of the inputs is an error.
func (e *Engine) bind(stack *raster.Stack) (*inputs, error) {
	if stack == nil || stack.Rows <= 0 || stack.Cols <= 0 {
		return nil, eris.New("dsscore: empty raster stack")
	}
	in := &inputs{names: e.model.Inputs(), bands: map[string]*raster.Band{}}
	for _, name := range in.names {
		b, ok := stack.Band(name)
		if !ok {
			in.missing = append(in.missing, name)
			b = raster.NewBand(name, stack.Rows, stack.Cols, e.noData)
		}
		in.bands[name] = b
	}
	if len(in.missing) == len(in.names) {
		return nil, eris.Errorf("dsscore: stack provides none of the model inputs %v (have %v)", in.names, stack.Names())
	}
	if len(in.missing) > 0 {
		zap.L().Warn("dsscore: inputs missing from stack, treating as no-data",
			zap.String("model", e.model.Name), zap.Strings("inputs", in.missing))
	}
	return in, nil
}

// blockResult holds one block's output columns, in model output order.
type blockResult struct {
	outputs [][]float64
	tally   []float64
}

// evalBlock scores one block. It reads the input bands and allocates its
// own outputs, so blocks never share mutable state.
func (e *Engine) evalBlock(in *inputs, blk raster.Block) (*blockResult, error) {
	binding := make(fuzzy.Binding, len(in.names))
	for _, name := range in.names {
		b := in.bands[name]
		binding[name] = fuzzy.SurfaceFrom(b.Slice(blk), b.NoData)
	}

	ims := make(map[string]map[string]*fuzzy.Implication, len(e.model.Sets))
	for _, s := range e.model.Sets {
		im, err := e.eval.Evaluate(s.Rules, binding)
		if err != nil {
			return nil, eris.Wrapf(err, "dsscore: block %d set %q", blk.Index, s.Name)
		}
		ims[s.Name] = im
	}

	// A set value may be read by several outputs; defuzzify each
	// (value, method) pair once.
	cache := map[string][]float64{}
	res := &blockResult{outputs: make([][]float64, len(e.model.Outputs))}
	for i, o := range e.model.Outputs {
		cols := make(map[string][]float64, len(o.Methods))
		for _, key := range o.Expr.Refs() {
			m := o.Method(key)
			ck := key + "|" + m.String()
			col, ok := cache[ck]
			if !ok {
				v, _ := e.model.Value(key)
				col = ims[v.Set][v.Result].Defuzzify(m)
				cache[ck] = col
			}
			cols[key] = col
		}
		out := make([]float64, blk.Cells())
		if err := o.Expr.EvalInto(out, cols); err != nil {
			return nil, eris.Wrapf(err, "dsscore: block %d output %q", blk.Index, o.Name)
		}
		res.outputs[i] = out
	}

	if e.tally {
		res.tally = make([]float64, blk.Cells())
		for _, name := range in.names {
			b := in.bands[name]
			for i, v := range b.Slice(blk) {
				if b.IsNoData(v) {
					res.tally[i]++
				}
			}
		}
	}
	return res, nil
}
