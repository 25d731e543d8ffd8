// Package combine compiles the arithmetic expressions that turn defuzzed
// fuzzy-set values into named model outputs.
package combine

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Expr is a compiled combiner expression. It is immutable and safe for
// concurrent use.
type Expr struct {
	src  string
	root node
	refs []string
}

// Compile parses src. Unknown functions, wrong argument counts and syntax
// errors are reported here so evaluation cannot fail.
func Compile(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, index: map[string]int{}}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tEOF {
		return nil, eris.Errorf("combine: unexpected %q at offset %d", t.text, t.pos)
	}
	return &Expr{src: strings.TrimSpace(src), root: root, refs: p.refs}, nil
}

// MustCompile is Compile for expressions known to be valid.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expr) String() string { return e.src }

// Refs returns the names the expression reads, in first-appearance order.
func (e *Expr) Refs() []string { return append([]string(nil), e.refs...) }

// Eval evaluates the expression against named values. A missing name reads
// as no-data (NaN). Non-finite results are reported as NaN.
func (e *Expr) Eval(vals map[string]float64) float64 {
	env := make([]float64, len(e.refs))
	for i, r := range e.refs {
		v, ok := vals[r]
		if !ok {
			v = math.NaN()
		}
		env[i] = v
	}
	return finite(e.root.eval(env))
}

// EvalInto evaluates the expression cell by cell over equally sized
// columns, writing into dst.
func (e *Expr) EvalInto(dst []float64, cols map[string][]float64) error {
	src := make([][]float64, len(e.refs))
	var missing []string
	for i, r := range e.refs {
		c, ok := cols[r]
		if !ok {
			missing = append(missing, r)
			continue
		}
		if len(c) != len(dst) {
			return eris.Errorf("combine: column %q has %d cells, expected %d", r, len(c), len(dst))
		}
		src[i] = c
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return eris.Errorf("combine: %s: no value for %s", e.src, strings.Join(missing, ", "))
	}
	env := make([]float64, len(e.refs))
	for i := range dst {
		for j, c := range src {
			env[j] = c[i]
		}
		dst[i] = finite(e.root.eval(env))
	}
	return nil
}

func finite(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

type node interface {
	eval(env []float64) float64
}

type num float64

func (n num) eval([]float64) float64 { return float64(n) }

type ref int

func (r ref) eval(env []float64) float64 { return env[r] }

type neg struct{ x node }

func (n neg) eval(env []float64) float64 { return -n.x.eval(env) }

type binary struct {
	op   byte
	l, r node
}

func (b binary) eval(env []float64) float64 {
	l, r := b.l.eval(env), b.r.eval(env)
	switch b.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		if r == 0 {
			return math.NaN()
		}
		return l / r
	default:
		return math.Pow(l, r)
	}
}

type call struct {
	fn   *function
	args []node
}

func (c call) eval(env []float64) float64 {
	vs := make([]float64, len(c.args))
	for i, a := range c.args {
		vs[i] = a.eval(env)
	}
	switch c.fn.nan {
	case nanPropagate:
		for _, v := range vs {
			if math.IsNaN(v) {
				return v
			}
		}
	case nanSkip:
		kept := vs[:0]
		for _, v := range vs {
			if !math.IsNaN(v) {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			return math.NaN()
		}
		vs = kept
	}
	return c.fn.apply(vs)
}
