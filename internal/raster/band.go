// Package raster holds the gridded inputs and outputs of a scoring run:
// row-major float bands sharing one georeference, row blocks for parallel
// evaluation, and simple file adapters.
package raster

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Meta is the georeference shared by every band of a stack. GeoTransform
// follows the affine convention x = gt[0] + col*gt[1] + row*gt[2],
// y = gt[3] + col*gt[4] + row*gt[5].
type Meta struct {
	GeoTransform [6]float64 `json:"geo_transform"`
	Projection   string     `json:"projection,omitempty"`
}

// CellCenter returns the map coordinates of the centre of cell (row, col).
func (m Meta) CellCenter(row, col int) (float64, float64) {
	c, r := float64(col)+0.5, float64(row)+0.5
	gt := m.GeoTransform
	return gt[0] + c*gt[1] + r*gt[2], gt[3] + c*gt[4] + r*gt[5]
}

// Band is one named grid of values in row-major order.
type Band struct {
	Name   string
	Rows   int
	Cols   int
	Data   []float64
	NoData float64
}

// NewBand returns a band with every cell set to noData.
func NewBand(name string, rows, cols int, noData float64) *Band {
	b := &Band{Name: name, Rows: rows, Cols: cols, Data: make([]float64, rows*cols), NoData: noData}
	for i := range b.Data {
		b.Data[i] = noData
	}
	return b
}

// IsNoData reports whether v is the band's no-data value or NaN.
func (b *Band) IsNoData(v float64) bool {
	return math.IsNaN(v) || v == b.NoData
}

// At returns the value at (row, col).
func (b *Band) At(row, col int) float64 { return b.Data[row*b.Cols+col] }

// Slice returns the block's cells. The slice aliases the band.
func (b *Band) Slice(blk Block) []float64 {
	return b.Data[blk.Offset() : blk.Offset()+blk.Cells()]
}

// Put writes vals into the block's cells, storing NaN as the band's
// no-data value.
func (b *Band) Put(blk Block, vals []float64) {
	dst := b.Slice(blk)
	for i, v := range vals {
		if math.IsNaN(v) {
			v = b.NoData
		}
		dst[i] = v
	}
}

// Fill sets every cell of the block to no-data.
func (b *Band) Fill(blk Block) {
	dst := b.Slice(blk)
	for i := range dst {
		dst[i] = b.NoData
	}
}

// ApplyMask sets every cell whose mask entry is false to no-data.
func (b *Band) ApplyMask(keep []bool) error {
	if len(keep) != len(b.Data) {
		return eris.Errorf("raster: mask has %d cells, band %q has %d", len(keep), b.Name, len(b.Data))
	}
	for i, k := range keep {
		if !k {
			b.Data[i] = b.NoData
		}
	}
	return nil
}

// Stack is a set of equally shaped bands keyed by name.
type Stack struct {
	Meta  Meta
	Rows  int
	Cols  int
	Bands map[string]*Band
}

// NewStack builds a stack, checking that every band has the same shape.
func NewStack(meta Meta, bands ...*Band) (*Stack, error) {
	s := &Stack{Meta: meta, Bands: map[string]*Band{}}
	for _, b := range bands {
		if err := s.Add(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts a band. The first band fixes the stack's shape.
func (s *Stack) Add(b *Band) error {
	if len(b.Data) != b.Rows*b.Cols {
		return eris.Errorf("raster: band %q has %d values for %dx%d cells", b.Name, len(b.Data), b.Rows, b.Cols)
	}
	if _, dup := s.Bands[b.Name]; dup {
		return eris.Errorf("raster: duplicate band %q", b.Name)
	}
	if len(s.Bands) == 0 {
		s.Rows, s.Cols = b.Rows, b.Cols
	} else if b.Rows != s.Rows || b.Cols != s.Cols {
		return eris.Errorf("raster: band %q is %dx%d, stack is %dx%d", b.Name, b.Rows, b.Cols, s.Rows, s.Cols)
	}
	s.Bands[b.Name] = b
	return nil
}

// Band returns the named band.
func (s *Stack) Band(name string) (*Band, bool) {
	b, ok := s.Bands[name]
	return b, ok
}

// Names returns band names in sorted order.
func (s *Stack) Names() []string {
	out := make([]string, 0, len(s.Bands))
	for n := range s.Bands {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MaxOf builds a band holding, per cell, the largest value among bands whose
// name starts with prefix. No-data cells are skipped; a cell with no data in
// every matching band is no-data. It returns nil when no band matches.
func MaxOf(name, prefix string, bands []*Band, noData float64) *Band {
	var src []*Band
	for _, b := range bands {
		if strings.HasPrefix(b.Name, prefix) {
			src = append(src, b)
		}
	}
	if len(src) == 0 {
		return nil
	}
	out := NewBand(name, src[0].Rows, src[0].Cols, noData)
	for i := range out.Data {
		best, ok := math.Inf(-1), false
		for _, b := range src {
			v := b.Data[i]
			if b.IsNoData(v) {
				continue
			}
			if v > best {
				best = v
			}
			ok = true
		}
		if ok {
			out.Data[i] = best
		}
	}
	return out
}
