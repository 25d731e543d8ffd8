package fuzzy

import "sort"

// DefaultSampleCount is the number of steps used to discretise a result
// domain.
const DefaultSampleCount = 1000

// Binding maps input names to raw (un-normalised) value surfaces. All
// surfaces in one binding must have the same length.
type Binding map[string]Surface

// Evaluator applies compiled rules to bound surfaces. It holds no mutable
// state, so one Evaluator may serve many goroutines.
type Evaluator struct {
	policy  NoDataPolicy
	samples int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithNoDataPolicy sets how missing inputs are treated.
func WithNoDataPolicy(p NoDataPolicy) Option {
	return func(e *Evaluator) { e.policy = p }
}

// WithSampleCount sets the number of domain steps used for implication
// surfaces. Odd counts are rounded up so Simpson's rule applies.
func WithSampleCount(n int) Option {
	return func(e *Evaluator) {
		if n > 1 {
			e.samples = n + n%2
		}
	}
}

// NewEvaluator returns an Evaluator with propagate no-data handling and
// DefaultSampleCount steps unless overridden.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{samples: DefaultSampleCount}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Policy returns the evaluator's no-data policy.
func (e *Evaluator) Policy() NoDataPolicy { return e.policy }

// SampleCount returns the number of domain steps.
func (e *Evaluator) SampleCount() int { return e.samples }

// checkBinding returns the common length of the surfaces the rule set needs.
func checkBinding(names []string, b Binding) (int, error) {
	n := -1
	for _, name := range names {
		s, ok := b[name]
		if !ok {
			return 0, evalErr("input %q is not bound", name)
		}
		if len(s.Valid) != len(s.Values) {
			return 0, evalErr("input %q has %d values but %d mask cells", name, len(s.Values), len(s.Valid))
		}
		if n >= 0 && s.Len() != n {
			return 0, evalErr("input %q has %d cells, expected %d", name, s.Len(), n)
		}
		n = s.Len()
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// EvaluateNode evaluates a condition tree into a fresh membership surface.
// The tree is walked post-order with an explicit stack.
func (e *Evaluator) EvaluateNode(root *Node, b Binding) (Surface, error) {
	n, err := checkBinding(root.Inputs(), b)
	if err != nil {
		return Surface{}, err
	}
	return e.evalTree(root, b, n)
}

type frame struct {
	node *Node
	next int
}

func (e *Evaluator) evalTree(root *Node, b Binding, n int) (Surface, error) {
	stack := []frame{{node: root}}
	var vals []Surface
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.Args) {
			child := top.node.Args[top.next]
			top.next++
			stack = append(stack, frame{node: child})
			continue
		}
		node := top.node
		stack = stack[:len(stack)-1]

		if node.Op == OpLeaf {
			vals = append(vals, e.leaf(node, b[node.Input], n))
			continue
		}
		k := len(node.Args)
		args := vals[len(vals)-k:]
		vals = vals[:len(vals)-k]
		out, err := e.apply(node, args)
		if err != nil {
			return Surface{}, err
		}
		vals = append(vals, out)
	}
	return vals[0], nil
}

func (e *Evaluator) leaf(node *Node, raw Surface, n int) Surface {
	out := Surface{Values: make([]float64, n), Valid: make([]bool, n)}
	v, c := node.variable, node.curve
	for i := 0; i < n; i++ {
		x, ok := raw.Values[i], raw.Valid[i]
		if !ok && e.policy.Mode == Substitute {
			x, ok = e.policy.SubstituteValue, true
		}
		if !ok {
			continue
		}
		out.Values[i] = c.Eval(v.Normalize(x))
		out.Valid[i] = true
	}
	return out
}

func (e *Evaluator) apply(node *Node, args []Surface) (Surface, error) {
	mode := e.policy.Mode
	switch node.Op {
	case OpNot:
		return negate(args[0]), nil
	case OpAnd:
		return combine2(mode, args[0], args[1], And), nil
	case OpOr:
		return combine2(mode, args[0], args[1], Or), nil
	case OpXor:
		return combine2(mode, args[0], args[1], Xor), nil
	case OpProduct:
		return combineN(mode, args, Product), nil
	case OpSum:
		return combineN(mode, args, Sum), nil
	case OpGamma:
		g := node.Gamma
		if g < 0 || g > 1 {
			return Surface{}, evalErr("line %d: gamma %g outside [0,1]", node.line, g)
		}
		return combineN(mode, args, func(vs ...float64) float64 { return Gamma(g, vs...) }), nil
	}
	return Surface{}, evalErr("line %d: cannot evaluate %s node", node.line, node.Op)
}

// Evaluate runs every rule against the binding and aggregates the results
// into one Implication per result variable.
func (e *Evaluator) Evaluate(rs *RuleSet, b Binding) (map[string]*Implication, error) {
	inputs := rs.Inputs()
	sort.Strings(inputs)
	n, err := checkBinding(inputs, b)
	if err != nil {
		return nil, err
	}

	// Cells where every referenced input is missing never score.
	empty := make([]bool, n)
	for i := range empty {
		empty[i] = len(inputs) > 0
		for _, name := range inputs {
			if b[name].Valid[i] {
				empty[i] = false
				break
			}
		}
	}

	out := make(map[string]*Implication)
	for _, r := range rs.Rules {
		clip, err := e.evalTree(r.Condition, b, n)
		if err != nil {
			return nil, err
		}
		im, ok := out[r.Result]
		if !ok {
			im = newImplication(r.result, e.samples, e.policy.Mode, n, empty)
			out[r.Result] = im
		}
		im.add(r.curve, clip)
	}
	return out, nil
}
