package fuzzy

import (
	"math"
	"strings"
)

// Family is the closed set of membership-function shapes.
type Family int

const (
	Linear Family = iota
	Gaussian
	Sigmoid
	Triangle
	Trapezoid
	Step
	Polynomial
	Cubic
	Piecewise
)

var familyNames = map[Family]string{
	Linear:     "linear",
	Gaussian:   "gaussian",
	Sigmoid:    "sigmoid",
	Triangle:   "triangle",
	Trapezoid:  "trapezoid",
	Step:       "step",
	Polynomial: "polynomial",
	Cubic:      "cubic",
	Piecewise:  "piecewise",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return "unknown"
}

// ParseFamily maps a family name (case-insensitive) to its Family.
func ParseFamily(s string) (Family, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range familyNames {
		if name == s {
			return f, true
		}
	}
	return 0, false
}

// paramSpec lists parameter names in order and the defaults used when a
// definition supplies fewer values. A NaN default marks a required value.
type paramSpec struct {
	names    []string
	defaults []float64
}

var req = math.NaN()

var paramSpecs = map[Family]paramSpec{
	Linear:     {[]string{"x0", "y0", "x1", "y1"}, []float64{0, 0, 1, 1}},
	Gaussian:   {[]string{"a", "b", "c", "yoffset"}, []float64{1, 0.5, 0.1, 0}},
	Sigmoid:    {[]string{"x0", "l", "k", "yoffset"}, []float64{0.5, 1, 20, 0}},
	Triangle:   {[]string{"left", "mid", "right", "ymin", "ymax"}, []float64{req, req, req, 0, 1}},
	Trapezoid:  {[]string{"x0", "x1", "x2", "x3", "ymin", "ymax"}, []float64{req, req, req, req, 0, 1}},
	Step:       {[]string{"steps", "xmin", "xmax", "yleft", "yright"}, []float64{2, 0, 1, 0, 1}},
	Polynomial: {[]string{"a", "b", "c", "xmid"}, []float64{1, -1, 0.25, 0.5}},
	Cubic:      {[]string{"a", "b", "c", "d", "xmid"}, []float64{1, -1.5, 0.5, 0.15, 0.5}},
	Piecewise:  {},
}

// ParamNames returns the ordered parameter names for a family.
func ParamNames(f Family) []string {
	return append([]string(nil), paramSpecs[f].names...)
}

// NamedParams orders a name-to-value parameter map for NewCurve. Parameters
// left out take the family default; unknown names and missing required
// parameters are rejected.
func NamedParams(curve string, f Family, named map[string]float64) ([]float64, error) {
	spec := paramSpecs[f]
	known := make(map[string]bool, len(spec.names))
	out := make([]float64, len(spec.names))
	for i, n := range spec.names {
		known[n] = true
		v, ok := named[n]
		if !ok {
			if math.IsNaN(spec.defaults[i]) {
				return nil, validationErr(0, curve, "%s curve requires parameter %q", f, n)
			}
			v = spec.defaults[i]
		}
		out[i] = v
	}
	for n := range named {
		if !known[n] {
			return nil, validationErr(0, curve, "%s curve has no parameter %q", f, n)
		}
	}
	return out, nil
}

// Curve is an immutable membership function over the normalised domain
// [0,1]. Curves are built once by NewCurve and shared read-only.
type Curve struct {
	name     string
	family   Family
	params   []float64
	segments []Segment
}

// NewCurve validates a curve definition. Missing trailing parameters take the
// family defaults; out-of-order breakpoints are rejected here so evaluation
// never has to check them.
func NewCurve(name string, family Family, params []float64, segments []Segment) (*Curve, error) {
	spec, ok := paramSpecs[family]
	if !ok {
		return nil, validationErr(0, name, "unknown curve family %d", family)
	}
	if family == Piecewise {
		return newPiecewise(name, segments)
	}
	if len(segments) > 0 {
		return nil, validationErr(0, name, "%s curve does not take segments", family)
	}
	if len(params) > len(spec.names) {
		return nil, validationErr(0, name, "%s curve takes at most %d parameters, got %d",
			family, len(spec.names), len(params))
	}
	p := make([]float64, len(spec.names))
	for i := range p {
		if i < len(params) {
			p[i] = params[i]
			continue
		}
		if math.IsNaN(spec.defaults[i]) {
			return nil, validationErr(0, name, "%s curve requires parameter %q", family, spec.names[i])
		}
		p[i] = spec.defaults[i]
	}
	if !finite(p...) {
		return nil, validationErr(0, name, "parameters must be finite")
	}
	c := &Curve{name: name, family: family, params: p}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func newPiecewise(name string, segments []Segment) (*Curve, error) {
	if len(segments) == 0 {
		return nil, validationErr(0, name, "piecewise curve needs at least one segment")
	}
	for i, s := range segments {
		if err := s.validate(name, i); err != nil {
			return nil, err
		}
		if i > 0 && s.Start.X != segments[i-1].End.X {
			return nil, validationErr(0, name, "segment %d starts at x=%g but segment %d ends at x=%g",
				i, s.Start.X, i-1, segments[i-1].End.X)
		}
	}
	return &Curve{name: name, family: Piecewise, segments: append([]Segment(nil), segments...)}, nil
}

func (c *Curve) validate() error {
	p := c.params
	switch c.family {
	case Linear:
		if p[0] >= p[2] {
			return validationErr(0, c.name, "linear x0 %g must be less than x1 %g", p[0], p[2])
		}
	case Gaussian:
		if p[2] <= 0 {
			return validationErr(0, c.name, "gaussian width c must be positive, got %g", p[2])
		}
	case Triangle:
		if p[0] > p[1] || p[1] > p[2] || p[0] == p[2] {
			return validationErr(0, c.name, "triangle breakpoints must satisfy left <= mid <= right with left < right, got %g, %g, %g",
				p[0], p[1], p[2])
		}
	case Trapezoid:
		if p[0] > p[1] || p[1] > p[2] || p[2] > p[3] || p[0] == p[3] {
			return validationErr(0, c.name, "trapezoid breakpoints must be non-decreasing with x0 < x3, got %g, %g, %g, %g",
				p[0], p[1], p[2], p[3])
		}
	case Step:
		if p[0] < 2 || p[0] != math.Trunc(p[0]) {
			return validationErr(0, c.name, "step count must be an integer >= 2, got %g", p[0])
		}
		if p[1] >= p[2] {
			return validationErr(0, c.name, "step xmin %g must be less than xmax %g", p[1], p[2])
		}
	}
	return nil
}

// Name returns the curve's name.
func (c *Curve) Name() string { return c.name }

// Family returns the curve's shape family.
func (c *Curve) Family() Family { return c.family }

// Params returns a copy of the resolved parameter list.
func (c *Curve) Params() []float64 { return append([]float64(nil), c.params...) }

// Segments returns a copy of a piecewise curve's segments.
func (c *Curve) Segments() []Segment { return append([]Segment(nil), c.segments...) }

// Eval returns the membership degree for a normalised input, clamped to [0,1].
func (c *Curve) Eval(x float64) float64 {
	return clamp01(c.raw(x))
}

// EvalInto evaluates every element of xs into dst, which must be at least as
// long as xs.
func (c *Curve) EvalInto(dst, xs []float64) {
	for i, x := range xs {
		dst[i] = clamp01(c.raw(x))
	}
}

func (c *Curve) raw(x float64) float64 {
	p := c.params
	switch c.family {
	case Linear:
		switch {
		case x <= p[0]:
			return p[1]
		case x >= p[2]:
			return p[3]
		}
		return lerp(Point{p[0], p[1]}, Point{p[2], p[3]}, x)
	case Gaussian:
		a, b, w, yoff := p[0], p[1], p[2], p[3]
		return (a-yoff)*math.Exp(-((x-b)*(x-b))/(2*w*w)) + yoff
	case Sigmoid:
		x0, l, k, yoff := p[0], p[1], p[2], p[3]
		return (l-yoff)/(1+math.Exp(-k*(x-x0))) + yoff
	case Triangle:
		left, mid, right, ymin, ymax := p[0], p[1], p[2], p[3], p[4]
		switch {
		case x < left || x > right:
			return ymin
		case x == mid:
			return ymax
		case x < mid:
			return lerp(Point{left, ymin}, Point{mid, ymax}, x)
		}
		return lerp(Point{mid, ymax}, Point{right, ymin}, x)
	case Trapezoid:
		x0, x1, x2, x3, ymin, ymax := p[0], p[1], p[2], p[3], p[4], p[5]
		switch {
		case x < x0 || x > x3:
			return ymin
		case x >= x1 && x <= x2:
			return ymax
		case x < x1:
			return lerp(Point{x0, ymin}, Point{x1, ymax}, x)
		}
		return lerp(Point{x2, ymax}, Point{x3, ymin}, x)
	case Step:
		steps, xmin, xmax, yleft, yright := p[0], p[1], p[2], p[3], p[4]
		switch {
		case x <= xmin:
			return yleft
		case x >= xmax:
			return yright
		}
		xinc := (xmax - xmin) / steps
		yinc := (yright - yleft) / (steps - 1)
		idx := math.Min(math.Floor((x-xmin)/xinc), steps-1)
		return idx*yinc + yleft
	case Polynomial:
		xp := x - (p[3] - 0.5)
		return p[0]*xp*xp + p[1]*xp + p[2]
	case Cubic:
		xp := x - (p[4] - 0.5)
		return p[0]*xp*xp*xp + p[1]*xp*xp + p[2]*xp + p[3]
	case Piecewise:
		segs := c.segments
		if x <= segs[0].Start.X {
			return segs[0].eval(segs[0].Start.X)
		}
		for _, s := range segs {
			if s.contains(x) {
				return s.eval(x)
			}
		}
		last := segs[len(segs)-1]
		return last.eval(last.End.X)
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
