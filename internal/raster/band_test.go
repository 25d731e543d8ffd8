package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocks(t *testing.T) {
	blocks := Blocks(10, 4, 3)
	require.Len(t, blocks, 4)
	assert.Equal(t, Block{Index: 3, Row0: 9, Rows: 1, Cols: 4}, blocks[3])

	total := 0
	for i, b := range blocks {
		assert.Equal(t, i, b.Index)
		assert.Equal(t, total, b.Offset())
		total += b.Cells()
	}
	assert.Equal(t, 40, total)

	assert.Len(t, Blocks(10, 4, 0), 1)
	assert.Len(t, Blocks(10, 4, 100), 1)
	assert.Nil(t, Blocks(0, 4, 3))
}

func TestBand_SlicePut(t *testing.T) {
	b := NewBand("x", 3, 2, -1)
	blk := Blocks(3, 2, 2)[1]
	b.Put(blk, []float64{5, math.NaN()})
	assert.Equal(t, []float64{-1, -1, -1, -1, 5, -1}, b.Data)
	assert.Equal(t, 5.0, b.At(2, 0))
	assert.True(t, b.IsNoData(b.At(2, 1)))

	b.Fill(blk)
	assert.Equal(t, -1.0, b.At(2, 0))
}

func TestStack_ShapeChecks(t *testing.T) {
	s, err := NewStack(Meta{}, NewBand("a", 2, 2, -1), NewBand("b", 2, 2, -1))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Names())

	err = s.Add(NewBand("c", 3, 2, -1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack is 2x2")

	err = s.Add(NewBand("a", 2, 2, -1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate band")

	err = s.Add(&Band{Name: "d", Rows: 2, Cols: 2, Data: []float64{1}})
	require.Error(t, err)
}

func TestMaxOf(t *testing.T) {
	a := &Band{Name: "PE_REE", Rows: 1, Cols: 3, Data: []float64{0.2, -1, -1}, NoData: -1}
	b := &Band{Name: "PE_CM", Rows: 1, Cols: 3, Data: []float64{0.5, 0.4, -1}, NoData: -1}
	c := &Band{Name: "DS_Trap", Rows: 1, Cols: 3, Data: []float64{9, 9, 9}, NoData: -1}

	m := MaxOf("PE_max", "PE_", []*Band{a, b, c}, -99)
	require.NotNil(t, m)
	assert.Equal(t, []float64{0.5, 0.4, -99}, m.Data)
	assert.Nil(t, MaxOf("PE_max", "XX", []*Band{a}, -99))
}

func TestMeta_CellCenter(t *testing.T) {
	m := Meta{GeoTransform: [6]float64{100, 10, 0, 500, 0, -10}}
	x, y := m.CellCenter(0, 0)
	assert.Equal(t, 105.0, x)
	assert.Equal(t, 495.0, y)
	x, y = m.CellCenter(2, 3)
	assert.Equal(t, 135.0, x)
	assert.Equal(t, 475.0, y)
}
