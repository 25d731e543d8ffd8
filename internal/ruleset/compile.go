package ruleset

import (
	"errors"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-score/internal/combine"
	"github.com/sells-group/pe-score/internal/fuzzy"
)

// Compiled is a validated model ready for evaluation. It is immutable and
// shared read-only by every block worker.
type Compiled struct {
	Name    string
	Sets    []*Set
	Outputs []*Output
	NoData  fuzzy.NoDataPolicy

	values map[string]Value
}

// Set is one compiled fuzzy-logic set.
type Set struct {
	Name    string
	Rules   *fuzzy.RuleSet
	Inputs  []*fuzzy.Variable
	Results []*fuzzy.Variable
	Defuzz  fuzzy.Method
}

// Value names one defuzzed quantity a combiner can read: a result variable
// of a set. Key is "set.result", or just "set" for single-result sets.
type Value struct {
	Key    string
	Set    string
	Result string
}

// Output is a compiled combiner.
type Output struct {
	Name    string
	Expr    *combine.Expr
	Methods map[string]fuzzy.Method
}

// Method returns the defuzzification method the output applies to the set
// value key.
func (o *Output) Method(key string) fuzzy.Method {
	return o.Methods[key]
}

// Compile validates the model and builds curves, rule sets and combiners.
// Every problem found is returned, joined.
func (m *Model) Compile() (*Compiled, error) {
	var errs []error
	fail := func(err error) { errs = append(errs, err) }

	c := &Compiled{Name: m.Name, values: map[string]Value{}}

	mode, ok := fuzzy.ParseNoDataMode(m.NoData.Policy)
	if !ok {
		fail(eris.Errorf("ruleset: unknown nodata policy %q", m.NoData.Policy))
	}
	c.NoData = fuzzy.NoDataPolicy{Mode: mode, SubstituteValue: m.NoData.Substitute}

	if len(m.Sets) == 0 {
		fail(eris.New("ruleset: model has no sets"))
	}
	seen := map[string]bool{}
	for i := range m.Sets {
		spec := &m.Sets[i]
		if spec.Name == "" {
			fail(eris.Errorf("ruleset: set %d has no name", i+1))
			continue
		}
		if seen[spec.Name] {
			fail(eris.Errorf("ruleset: set %q defined twice", spec.Name))
			continue
		}
		seen[spec.Name] = true
		s, err := compileSet(spec)
		if err != nil {
			fail(err)
			continue
		}
		c.Sets = append(c.Sets, s)
		c.addValues(s)
	}

	outs := m.Outputs
	if len(outs) == 0 && len(errs) == 0 {
		outs = c.defaultOutputs()
	}
	names := map[string]bool{}
	for i := range outs {
		spec := &outs[i]
		if names[spec.Name] {
			fail(eris.Errorf("ruleset: output %q defined twice", spec.Name))
			continue
		}
		names[spec.Name] = true
		o, err := c.compileOutput(spec, seen)
		if err != nil {
			fail(err)
			continue
		}
		c.Outputs = append(c.Outputs, o)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func compileSet(spec *SetSpec) (*Set, error) {
	var errs []error
	s := &Set{Name: spec.Name}

	method, ok := fuzzy.ParseMethod(spec.Defuzz)
	if !ok {
		errs = append(errs, eris.Errorf("ruleset: set %q: unknown defuzz method %q", spec.Name, spec.Defuzz))
	}
	s.Defuzz = method

	build := func(kind string, specs []VariableSpec) []*fuzzy.Variable {
		var out []*fuzzy.Variable
		for i := range specs {
			v, err := buildVariable(&specs[i])
			if err != nil {
				errs = append(errs, eris.Wrapf(err, "ruleset: set %q %s %q", spec.Name, kind, specs[i].Name))
				continue
			}
			out = append(out, v)
		}
		return out
	}
	s.Inputs = build("input", spec.Inputs)
	s.Results = build("result", spec.Results)
	if len(spec.Results) == 0 {
		errs = append(errs, eris.Errorf("ruleset: set %q declares no results", spec.Name))
	}
	if strings.TrimSpace(spec.Rules) == "" {
		errs = append(errs, eris.Errorf("ruleset: set %q has no rules", spec.Name))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	rs, err := fuzzy.Parse(spec.Rules, fuzzy.NewSchema(s.Inputs, s.Results))
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: set %q rules", spec.Name)
	}
	s.Rules = rs
	return s, nil
}

func buildVariable(spec *VariableSpec) (*fuzzy.Variable, error) {
	var curves []*fuzzy.Curve
	var errs []error
	for i := range spec.Curves {
		c, err := buildCurve(&spec.Curves[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		curves = append(curves, c)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return fuzzy.NewVariable(spec.Name, spec.Min, spec.Max, curves...)
}

func buildCurve(spec *CurveSpec) (*fuzzy.Curve, error) {
	fam, ok := fuzzy.ParseFamily(spec.Type)
	if !ok {
		return nil, eris.Errorf("ruleset: curve %q: unknown type %q", spec.Name, spec.Type)
	}
	if fam == fuzzy.Piecewise {
		segs := make([]fuzzy.Segment, 0, len(spec.Segments))
		for i, ss := range spec.Segments {
			kind, ok := fuzzy.ParseSegmentKind(ss.Kind)
			if !ok {
				return nil, eris.Errorf("ruleset: curve %q segment %d: unknown kind %q", spec.Name, i+1, ss.Kind)
			}
			seg := fuzzy.Segment{Kind: kind, Start: ss.Start, End: ss.End, Height: ss.Height}
			if kind == fuzzy.SegmentBezier {
				seg.Ctrl = fuzzy.Point{X: (ss.Start.X + ss.End.X) / 2, Y: (ss.Start.Y + ss.End.Y) / 2}
				if ss.Ctrl != nil {
					seg.Ctrl = *ss.Ctrl
				}
			}
			segs = append(segs, seg)
		}
		return fuzzy.NewCurve(spec.Name, fam, nil, segs)
	}
	params, err := fuzzy.NamedParams(spec.Name, fam, spec.Params)
	if err != nil {
		return nil, err
	}
	return fuzzy.NewCurve(spec.Name, fam, params, nil)
}

func (c *Compiled) addValues(s *Set) {
	for _, r := range s.Results {
		key := s.Name + "." + r.Name
		c.values[key] = Value{Key: key, Set: s.Name, Result: r.Name}
	}
	if len(s.Results) == 1 {
		c.values[s.Name] = Value{Key: s.Name, Set: s.Name, Result: s.Results[0].Name}
	}
}

// defaultOutputs emits one pass-through output per set value targeted by
// rules: named after the set for single-result sets, "set.result"
// otherwise.
func (c *Compiled) defaultOutputs() []OutputSpec {
	var out []OutputSpec
	for _, s := range c.Sets {
		for _, r := range s.Rules.Results() {
			key := s.Name + "." + r
			if len(s.Results) == 1 {
				key = s.Name
			}
			out = append(out, OutputSpec{Name: key, Combine: key})
		}
	}
	return out
}

func (c *Compiled) compileOutput(spec *OutputSpec, sets map[string]bool) (*Output, error) {
	if spec.Name == "" {
		return nil, eris.New("ruleset: output has no name")
	}
	expr, err := combine.Compile(spec.Combine)
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: output %q", spec.Name)
	}
	def, ok := fuzzy.ParseMethod(spec.DefaultDefuzz)
	if !ok {
		return nil, eris.Errorf("ruleset: output %q: unknown defuzz method %q", spec.Name, spec.DefaultDefuzz)
	}

	o := &Output{Name: spec.Name, Expr: expr, Methods: map[string]fuzzy.Method{}}
	for _, key := range expr.Refs() {
		v, ok := c.values[key]
		if !ok {
			if sets[strings.SplitN(key, ".", 2)[0]] {
				return nil, eris.Errorf("ruleset: output %q: %q is not a single set value; use set.result", spec.Name, key)
			}
			return nil, eris.Errorf("ruleset: output %q: unknown set value %q", spec.Name, key)
		}
		if !c.targeted(v) {
			return nil, eris.Errorf("ruleset: output %q: no rule targets %q", spec.Name, key)
		}
		// An explicit output default wins over the set's own method.
		o.Methods[key] = c.set(v.Set).Defuzz
		if spec.DefaultDefuzz != "" {
			o.Methods[key] = def
		}
	}
	for key, name := range spec.Defuzz {
		if _, ok := o.Methods[key]; !ok {
			return nil, eris.Errorf("ruleset: output %q: defuzz override for unused value %q", spec.Name, key)
		}
		m, ok := fuzzy.ParseMethod(name)
		if !ok {
			return nil, eris.Errorf("ruleset: output %q: unknown defuzz method %q for %q", spec.Name, name, key)
		}
		o.Methods[key] = m
	}
	return o, nil
}

func (c *Compiled) targeted(v Value) bool {
	s := c.set(v.Set)
	if s == nil {
		return false
	}
	for _, r := range s.Rules.Results() {
		if r == v.Result {
			return true
		}
	}
	return false
}

func (c *Compiled) set(name string) *Set {
	for _, s := range c.Sets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Set returns the compiled set with the given name.
func (c *Compiled) Set(name string) (*Set, bool) {
	s := c.set(name)
	return s, s != nil
}

// Value resolves a combiner key.
func (c *Compiled) Value(key string) (Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Inputs returns the sorted names of every input any set declares.
func (c *Compiled) Inputs() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range c.Sets {
		for _, v := range s.Inputs {
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v.Name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// OutputNames returns output names in declaration order.
func (c *Compiled) OutputNames() []string {
	out := make([]string, len(c.Outputs))
	for i, o := range c.Outputs {
		out[i] = o.Name
	}
	return out
}
