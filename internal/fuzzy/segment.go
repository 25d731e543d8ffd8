package fuzzy

// Point is a location on a normalised curve.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// SegmentKind is the shape of one piece of a piecewise curve.
type SegmentKind int

const (
	SegmentLinear SegmentKind = iota
	SegmentStep
	SegmentBezier
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLinear:
		return "linear"
	case SegmentStep:
		return "step"
	case SegmentBezier:
		return "bezier"
	default:
		return "unknown"
	}
}

// ParseSegmentKind maps a segment kind name to its SegmentKind.
func ParseSegmentKind(s string) (SegmentKind, bool) {
	switch s {
	case "linear", "":
		return SegmentLinear, true
	case "step", "stepwise":
		return SegmentStep, true
	case "bezier":
		return SegmentBezier, true
	default:
		return 0, false
	}
}

// Segment is one piece of a piecewise curve covering [Start.X, End.X].
// Height is used by step segments; Ctrl by bezier segments.
type Segment struct {
	Kind   SegmentKind
	Start  Point
	End    Point
	Height float64
	Ctrl   Point
}

func (s Segment) contains(x float64) bool {
	return x >= s.Start.X && x <= s.End.X
}

func (s Segment) eval(x float64) float64 {
	switch s.Kind {
	case SegmentStep:
		return s.Height
	case SegmentBezier:
		// t is located piecewise-linearly on either side of the control point.
		t := 0.5
		if s.Ctrl.X > x {
			t = 0.5 - 0.5*(s.Ctrl.X-x)/(s.Ctrl.X-s.Start.X)
		} else if s.Ctrl.X < x {
			t = 0.5 + 0.5*(x-s.Ctrl.X)/(s.End.X-s.Ctrl.X)
		}
		u := 1 - t
		return u*u*s.Start.Y + 2*t*u*s.Ctrl.Y + t*t*s.End.Y
	default:
		return lerp(s.Start, s.End, x)
	}
}

func (s Segment) validate(name string, idx int) error {
	if !finite(s.Start.X, s.Start.Y, s.End.X, s.End.Y, s.Height, s.Ctrl.X, s.Ctrl.Y) {
		return validationErr(0, name, "segment %d has a non-finite coordinate", idx)
	}
	if s.Start.X >= s.End.X {
		return validationErr(0, name, "segment %d: start x %g must be less than end x %g", idx, s.Start.X, s.End.X)
	}
	if s.Kind == SegmentBezier && (s.Ctrl.X <= s.Start.X || s.Ctrl.X >= s.End.X) {
		return validationErr(0, name, "segment %d: bezier control x %g must lie strictly inside (%g, %g)",
			idx, s.Ctrl.X, s.Start.X, s.End.X)
	}
	return nil
}

func lerp(a, b Point, x float64) float64 {
	if b.X == a.X {
		return b.Y
	}
	return a.Y + (b.Y-a.Y)*(x-a.X)/(b.X-a.X)
}
