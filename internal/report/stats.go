// Package report writes run summaries: per-band statistics and the
// distribution of missing inputs across the scored area.
package report

import (
	"math"
	"sort"

	"github.com/sells-group/pe-score/internal/model"
	"github.com/sells-group/pe-score/internal/raster"
)

// BandStats summarises the valid cells of b. Min, Max and Mean are NaN when
// the band has no valid cell.
func BandStats(b *raster.Band) model.Stats {
	s := model.Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range b.Data {
		if b.IsNoData(v) {
			s.NoData++
			continue
		}
		s.Valid++
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if s.Valid == 0 {
		s.Min, s.Max, s.Mean = math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Mean = sum / float64(s.Valid)
	return s
}

// Summarize computes BandStats for every band, keyed by band name.
func Summarize(bands ...*raster.Band) map[string]model.Stats {
	out := make(map[string]model.Stats, len(bands))
	for _, b := range bands {
		out[b.Name] = BandStats(b)
	}
	return out
}

// TallyRow is one line of the no-data summary: how many cells were scored
// with a given number of missing inputs.
type TallyRow struct {
	NoDataInputs int     `csv:"nodata_inputs"`
	Cells        int     `csv:"cells"`
	Fraction     float64 `csv:"fraction"`
}

// TallyCounts groups the cells of a tally band by value. Cells that are
// no-data in the tally band itself (clipped or outside the stack) are left
// out; fractions are of the counted cells.
func TallyCounts(tally *raster.Band) []TallyRow {
	counts := map[int]int{}
	total := 0
	for _, v := range tally.Data {
		if tally.IsNoData(v) {
			continue
		}
		counts[int(v)]++
		total++
	}
	rows := make([]TallyRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, TallyRow{NoDataInputs: k, Cells: n, Fraction: float64(n) / float64(total)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].NoDataInputs < rows[j].NoDataInputs })
	return rows
}
