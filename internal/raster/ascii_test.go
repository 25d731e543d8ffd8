package raster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGrid = `ncols 3
nrows 2
xllcorner 100
yllcorner 200
cellsize 10
NODATA_value -9999
1 2.5 -9999
4 5 6
`

func TestDecodeASCII(t *testing.T) {
	b, m, err := DecodeASCII("depth", strings.NewReader(sampleGrid))
	require.NoError(t, err)
	assert.Equal(t, "depth", b.Name)
	assert.Equal(t, 2, b.Rows)
	assert.Equal(t, 3, b.Cols)
	assert.Equal(t, []float64{1, 2.5, -9999, 4, 5, 6}, b.Data)
	assert.Equal(t, -9999.0, b.NoData)
	assert.Equal(t, [6]float64{100, 10, 0, 220, 0, -10}, m.GeoTransform)
}

func TestDecodeASCII_CenterHeaderAndDefaultNoData(t *testing.T) {
	src := "NCOLS 1\nNROWS 1\nXLLCENTER 5\nYLLCENTER 5\nCELLSIZE 10\n7\n"
	b, m, err := DecodeASCII("g", strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, DefaultNoData, b.NoData)
	assert.Equal(t, [6]float64{0, 10, 0, 10, 0, -10}, m.GeoTransform)
}

func TestDecodeASCII_Errors(t *testing.T) {
	tests := []struct {
		name, src, msg string
	}{
		{"no header", "1 2 3", "positive ncols"},
		{"short", "ncols 2\nnrows 2\ncellsize 1\n1 2 3\n", "expected 4 cells, found 3"},
		{"bad cell", "ncols 2\nnrows 1\ncellsize 1\n1 x\n", "raster: cell 1"},
		{"dangling key", "ncols", "has no value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeASCII("g", strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestASCII_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, m, err := DecodeASCII("depth", strings.NewReader(sampleGrid))
	require.NoError(t, err)

	paths, err := WriteDir(dir, m, b)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "depth.asc")}, paths)

	got, gm, err := ReadASCII(paths[0])
	require.NoError(t, err)
	assert.Equal(t, b.Data, got.Data)
	assert.Equal(t, m, gm)
}

func TestWriteASCII_RejectsRotatedGrid(t *testing.T) {
	b := NewBand("r", 1, 1, -1)
	err := WriteASCII(filepath.Join(t.TempDir(), "r.asc"), b, Meta{GeoTransform: [6]float64{0, 1, 0.5, 0, 0, -1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "north-up")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.asc"), []byte(sampleGrid), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.asc"), []byte(sampleGrid), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	s, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Equal(t, 2, s.Rows)
	assert.Equal(t, 3, s.Cols)

	_, err = LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .asc grids")
}
