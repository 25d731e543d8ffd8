package fuzzy

import "math"

// And is fuzzy conjunction: the smaller membership.
func And(a, b float64) float64 { return math.Min(a, b) }

// Or is fuzzy disjunction: the larger membership.
func Or(a, b float64) float64 { return math.Max(a, b) }

// Not is fuzzy negation.
func Not(a float64) float64 { return 1 - a }

// Xor is AND(NOT(AND(a,b)), OR(a,b)): the larger value, capped by how far
// the pair is from being jointly true.
func Xor(a, b float64) float64 { return And(Not(And(a, b)), Or(a, b)) }

// Product is the algebraic product of its arguments.
func Product(args ...float64) float64 {
	p := 1.0
	for _, a := range args {
		p *= a
	}
	return p
}

// Sum is the algebraic sum 1 - prod(1 - a), bounded to [0,1].
func Sum(args ...float64) float64 {
	p := 1.0
	for _, a := range args {
		p *= 1 - a
	}
	return 1 - p
}

// Gamma blends Sum and Product: Sum^g * Product^(1-g). The caller checks
// that g lies in [0,1].
func Gamma(g float64, args ...float64) float64 {
	switch g {
	case 0:
		return Product(args...)
	case 1:
		return Sum(args...)
	}
	return math.Pow(Sum(args...), g) * math.Pow(Product(args...), 1-g)
}

// combine2 applies a binary operator cell by cell into a, honouring the
// no-data mode. Under Ignore a missing operand yields the other operand.
func combine2(mode NoDataMode, a, b Surface, fn func(x, y float64) float64) Surface {
	for i := range a.Values {
		av, bv := a.Valid[i], b.Valid[i]
		switch {
		case av && bv:
			a.Values[i] = fn(a.Values[i], b.Values[i])
		case mode == Ignore && bv:
			a.Values[i] = b.Values[i]
			a.Valid[i] = true
		case mode == Ignore && av:
		default:
			a.Valid[i] = false
		}
	}
	return a
}

func negate(a Surface) Surface {
	for i, v := range a.Values {
		if a.Valid[i] {
			a.Values[i] = 1 - v
		}
	}
	return a
}

// combineN reduces a variadic operator across args into args[0]. Under
// Ignore missing operands are dropped per cell; a cell with no valid
// operands stays missing.
func combineN(mode NoDataMode, args []Surface, fn func(vals ...float64) float64) Surface {
	out := args[0]
	buf := make([]float64, 0, len(args))
	for i := range out.Values {
		buf = buf[:0]
		missing := false
		for _, s := range args {
			if s.Valid[i] {
				buf = append(buf, s.Values[i])
			} else {
				missing = true
			}
		}
		if len(buf) == 0 || (missing && mode != Ignore) {
			out.Valid[i] = false
			continue
		}
		out.Values[i] = fn(buf...)
		out.Valid[i] = true
	}
	return out
}
