package fuzzy

import (
	"math"
	"strings"
)

// Surface is a block of per-cell values with a validity mask. An invalid
// cell is no-data and its value is meaningless.
type Surface struct {
	Values []float64
	Valid  []bool
}

// NewSurface allocates an all-valid surface of n zero cells.
func NewSurface(n int) Surface {
	s := Surface{Values: make([]float64, n), Valid: make([]bool, n)}
	for i := range s.Valid {
		s.Valid[i] = true
	}
	return s
}

// SurfaceFrom wraps raw values, marking cells equal to noData (or NaN) as
// invalid.
func SurfaceFrom(values []float64, noData float64) Surface {
	s := Surface{Values: values, Valid: make([]bool, len(values))}
	for i, v := range values {
		s.Valid[i] = !(v == noData || math.IsNaN(v))
	}
	return s
}

// Len returns the number of cells.
func (s Surface) Len() int { return len(s.Values) }

// NoDataMode selects how missing operands are treated.
type NoDataMode int

const (
	// Propagate makes a cell no-data when any contributing operand is.
	Propagate NoDataMode = iota
	// Ignore drops missing operands; a cell is no-data only when all are missing.
	Ignore
	// Substitute replaces a missing raw input with a fixed value.
	Substitute
)

func (m NoDataMode) String() string {
	switch m {
	case Ignore:
		return "ignore"
	case Substitute:
		return "substitute"
	default:
		return "propagate"
	}
}

// ParseNoDataMode maps a mode name to a NoDataMode. "passthrough" is accepted
// as a synonym for propagate.
func ParseNoDataMode(s string) (NoDataMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "propagate", "passthrough":
		return Propagate, true
	case "ignore":
		return Ignore, true
	case "substitute":
		return Substitute, true
	}
	return 0, false
}

// NoDataPolicy configures no-data handling for an evaluation.
type NoDataPolicy struct {
	Mode NoDataMode
	// SubstituteValue is a raw input value, used only in Substitute mode.
	SubstituteValue float64
}

// NoData is the in-memory sentinel for a cell with no defined output.
var NoData = math.NaN()

// IsNoData reports whether v is the no-data sentinel.
func IsNoData(v float64) bool { return math.IsNaN(v) }
