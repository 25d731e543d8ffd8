package fuzzy

import "sort"

// Variable is a named input or result with a value range and the curves
// defined over it. Raw values are normalised into [0,1] before any curve
// lookup.
type Variable struct {
	Name   string
	Min    float64
	Max    float64
	curves map[string]*Curve
}

// NewVariable builds a variable. Max must exceed Min and curve names must be
// unique.
func NewVariable(name string, min, max float64, curves ...*Curve) (*Variable, error) {
	if name == "" {
		return nil, validationErr(0, "variable", "name is required")
	}
	if !finite(min, max) || max <= min {
		return nil, validationErr(0, name, "range max %g must be greater than min %g", max, min)
	}
	v := &Variable{Name: name, Min: min, Max: max, curves: make(map[string]*Curve, len(curves))}
	for _, c := range curves {
		if _, dup := v.curves[c.Name()]; dup {
			return nil, validationErr(0, name, "duplicate curve %q", c.Name())
		}
		v.curves[c.Name()] = c
	}
	return v, nil
}

// Curve looks up a curve by its case-sensitive name.
func (v *Variable) Curve(name string) (*Curve, bool) {
	c, ok := v.curves[name]
	return c, ok
}

// CurveNames returns the variable's curve names in sorted order.
func (v *Variable) CurveNames() []string {
	names := make([]string, 0, len(v.curves))
	for n := range v.curves {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Normalize maps a raw value into the variable's [0,1] domain. Values outside
// the range are not clamped; curves clamp their own output.
func (v *Variable) Normalize(x float64) float64 {
	return (x - v.Min) / (v.Max - v.Min)
}

// Denormalize maps a [0,1] domain position back into raw units.
func (v *Variable) Denormalize(n float64) float64 {
	return v.Min + n*(v.Max-v.Min)
}

// Schema is the set of names a rule text may reference.
type Schema struct {
	Inputs  map[string]*Variable
	Results map[string]*Variable
}

// NewSchema indexes inputs and results by name.
func NewSchema(inputs, results []*Variable) Schema {
	s := Schema{Inputs: make(map[string]*Variable, len(inputs)), Results: make(map[string]*Variable, len(results))}
	for _, v := range inputs {
		s.Inputs[v.Name] = v
	}
	for _, v := range results {
		s.Results[v.Name] = v
	}
	return s
}
