package combine

import (
	"math"

	"github.com/sells-group/pe-score/internal/fuzzy"
)

// nanMode says how a function treats no-data (NaN) arguments.
type nanMode int

const (
	nanPropagate nanMode = iota
	nanSkip
	nanPass
)

type function struct {
	name    string
	minArgs int
	maxArgs int // -1 for variadic
	nan     nanMode
	apply   func(vs []float64) float64
}

var functions = map[string]*function{
	"max": {name: "max", minArgs: 1, maxArgs: -1, nan: nanSkip, apply: func(vs []float64) float64 {
		m := vs[0]
		for _, v := range vs[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
	"min": {name: "min", minArgs: 1, maxArgs: -1, nan: nanSkip, apply: func(vs []float64) float64 {
		m := vs[0]
		for _, v := range vs[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"sum": {name: "sum", minArgs: 1, maxArgs: -1, apply: func(vs []float64) float64 {
		var s float64
		for _, v := range vs {
			s += v
		}
		return s
	}},
	"mean": {name: "mean", minArgs: 1, maxArgs: -1, apply: func(vs []float64) float64 {
		var s float64
		for _, v := range vs {
			s += v
		}
		return s / float64(len(vs))
	}},
	"product": {name: "product", minArgs: 1, maxArgs: -1, apply: func(vs []float64) float64 {
		return fuzzy.Product(vs...)
	}},
	"fsum": {name: "fsum", minArgs: 1, maxArgs: -1, apply: func(vs []float64) float64 {
		return fuzzy.Sum(vs...)
	}},
	"gamma": {name: "gamma", minArgs: 2, maxArgs: -1, apply: func(vs []float64) float64 {
		g := vs[0]
		if g < 0 || g > 1 {
			return math.NaN()
		}
		return fuzzy.Gamma(g, vs[1:]...)
	}},
	"checknodata": {name: "checknodata", minArgs: 2, maxArgs: 3, nan: nanPass, apply: func(vs []float64) float64 {
		switch {
		case math.IsNaN(vs[0]):
			return vs[1]
		case len(vs) == 3:
			return vs[2]
		}
		return vs[0]
	}},
	"abs":   unary("abs", math.Abs),
	"floor": unary("floor", math.Floor),
	"ceil":  unary("ceil", math.Ceil),
	"round": unary("round", math.Round),
	"sqrt":  unary("sqrt", math.Sqrt),
	"exp":   unary("exp", math.Exp),
	"log":   unary("log", math.Log),
	"log10": unary("log10", math.Log10),
	"pow": {name: "pow", minArgs: 2, maxArgs: 2, apply: func(vs []float64) float64 {
		return math.Pow(vs[0], vs[1])
	}},
	"clamp": {name: "clamp", minArgs: 3, maxArgs: 3, apply: func(vs []float64) float64 {
		return math.Max(vs[1], math.Min(vs[2], vs[0]))
	}},
}

func unary(name string, fn func(float64) float64) *function {
	return &function{name: name, minArgs: 1, maxArgs: 1, apply: func(vs []float64) float64 { return fn(vs[0]) }}
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}
