package fuzzy

import "math"

// Implication is the aggregated output distribution for one result
// variable: for each cell, mu(x) = max over rules of min(curve_r(x), clip_r).
// Rule curves are sampled once on the result domain grid and shared by all
// cells.
type Implication struct {
	result *Variable
	mode   NoDataMode
	xs     []float64
	ords   [][]float64
	clips  []Surface
	empty  []bool
	cache  map[*Curve][]float64
}

func newImplication(v *Variable, samples int, mode NoDataMode, n int, empty []bool) *Implication {
	xs := make([]float64, samples+1)
	step := (v.Max - v.Min) / float64(samples)
	for j := range xs {
		xs[j] = v.Min + step*float64(j)
	}
	xs[samples] = v.Max
	return &Implication{result: v, mode: mode, xs: xs, empty: empty, cache: map[*Curve][]float64{}}
}

func (im *Implication) add(c *Curve, clip Surface) {
	ord, ok := im.cache[c]
	if !ok {
		ord = make([]float64, len(im.xs))
		for j, x := range im.xs {
			ord[j] = c.Eval(im.result.Normalize(x))
		}
		im.cache[c] = ord
	}
	im.ords = append(im.ords, ord)
	im.clips = append(im.clips, clip)
}

// Result returns the result variable the implication describes.
func (im *Implication) Result() *Variable { return im.result }

// Len returns the number of cells.
func (im *Implication) Len() int { return len(im.empty) }

// Domain returns the sample positions in result units.
func (im *Implication) Domain() []float64 { return append([]float64(nil), im.xs...) }

// Rules returns the number of rules aggregated into the implication.
func (im *Implication) Rules() int { return len(im.clips) }

// Cell writes cell i's sampled distribution into mu (len(Domain()) long) and
// reports whether the cell has data.
func (im *Implication) Cell(i int, mu []float64) bool {
	if im.empty[i] {
		return false
	}
	for j := range mu {
		mu[j] = 0
	}
	used := 0
	for r, clip := range im.clips {
		if !clip.Valid[i] {
			if im.mode == Ignore {
				continue
			}
			return false
		}
		used++
		h := clip.Values[i]
		for j, y := range im.ords[r] {
			if v := math.Min(y, h); v > mu[j] {
				mu[j] = v
			}
		}
	}
	return used > 0
}

// Defuzzify reduces every cell to a scalar in result units. Cells without
// data, or whose distribution is all zero, are NoData.
func (im *Implication) Defuzzify(m Method) []float64 {
	out := make([]float64, im.Len())
	mu := make([]float64, len(im.xs))
	for i := range out {
		out[i] = im.DefuzzifyCell(i, m, mu)
	}
	return out
}

// DefuzzifyCell reduces one cell, using buf (len(Domain()) long) as scratch.
func (im *Implication) DefuzzifyCell(i int, m Method, buf []float64) float64 {
	if !im.Cell(i, buf) {
		return NoData
	}
	v, ok := Defuzzify(m, im.xs, buf)
	if !ok {
		return NoData
	}
	return v
}
