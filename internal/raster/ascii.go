package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultNoData is used for grids whose header omits NODATA_value.
const DefaultNoData = -9999.0

// ReadASCII reads an ESRI ASCII grid. The band takes the file's base name
// without extension.
func ReadASCII(path string) (*Band, Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Meta{}, eris.Wrapf(err, "raster: open %s", path)
	}
	defer func() { _ = f.Close() }()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	b, m, err := DecodeASCII(name, f)
	if err != nil {
		return nil, Meta{}, eris.Wrapf(err, "raster: read %s", path)
	}
	return b, m, nil
}

// DecodeASCII parses an ESRI ASCII grid from r.
func DecodeASCII(name string, r io.Reader) (*Band, Meta, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	hdr := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, Meta{}, eris.Errorf("raster: header key %q has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, Meta{}, eris.Wrapf(err, "raster: header %s", key)
		}
		hdr[key] = v
	}

	cols, rows := int(hdr["ncols"]), int(hdr["nrows"])
	cell, ok := hdr["cellsize"]
	if cols <= 0 || rows <= 0 || !ok || cell <= 0 {
		return nil, Meta{}, eris.New("raster: header needs positive ncols, nrows and cellsize")
	}
	x0, xok := hdr["xllcorner"]
	if c, ok := hdr["xllcenter"]; ok && !xok {
		x0 = c - cell/2
	}
	y0, yok := hdr["yllcorner"]
	if c, ok := hdr["yllcenter"]; ok && !yok {
		y0 = c - cell/2
	}
	noData, ok := hdr["nodata_value"]
	if !ok {
		noData = DefaultNoData
	}

	b := &Band{Name: name, Rows: rows, Cols: cols, Data: make([]float64, 0, rows*cols), NoData: noData}
	parse := func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return eris.Wrapf(err, "raster: cell %d", len(b.Data))
		}
		b.Data = append(b.Data, v)
		return nil
	}
	if first != "" {
		if err := parse(first); err != nil {
			return nil, Meta{}, err
		}
	}
	for sc.Scan() && len(b.Data) < rows*cols {
		if err := parse(sc.Text()); err != nil {
			return nil, Meta{}, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, Meta{}, eris.Wrap(err, "raster: scan")
	}
	if len(b.Data) != rows*cols {
		return nil, Meta{}, eris.Errorf("raster: expected %d cells, found %d", rows*cols, len(b.Data))
	}
	m := Meta{GeoTransform: [6]float64{x0, cell, 0, y0 + float64(rows)*cell, 0, -cell}}
	return b, m, nil
}

// WriteASCII writes b as an ESRI ASCII grid. Only north-up square-cell
// transforms can be expressed in the format.
func WriteASCII(path string, b *Band, m Meta) error {
	gt := m.GeoTransform
	if gt[2] != 0 || gt[4] != 0 || gt[1] != -gt[5] {
		return eris.Errorf("raster: %s: geotransform is not north-up with square cells", b.Name)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\ncellsize %s\nNODATA_value %s\n",
		b.Cols, b.Rows, fmtFloat(gt[0]), fmtFloat(gt[3]+float64(b.Rows)*gt[5]), fmtFloat(gt[1]), fmtFloat(b.NoData))
	for r := 0; r < b.Rows; r++ {
		row := b.Data[r*b.Cols : (r+1)*b.Cols]
		for c, v := range row {
			if c > 0 {
				_ = w.WriteByte(' ')
			}
			if b.IsNoData(v) {
				v = b.NoData
			}
			_, _ = w.WriteString(fmtFloat(v))
		}
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "raster: write %s", path)
	}
	return eris.Wrapf(f.Close(), "raster: close %s", path)
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// LoadDir reads every .asc grid in dir into one stack. All grids must share
// shape; the first grid's georeference is used for the stack.
func LoadDir(dir string) (*Stack, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.asc"))
	if err != nil {
		return nil, eris.Wrapf(err, "raster: list %s", dir)
	}
	if len(paths) == 0 {
		return nil, eris.Errorf("raster: no .asc grids in %s", dir)
	}
	s := &Stack{Bands: map[string]*Band{}}
	for i, p := range paths {
		b, m, err := ReadASCII(p)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			s.Meta = m
		} else if m.GeoTransform != s.Meta.GeoTransform {
			zap.L().Warn("raster: grid georeference differs from stack",
				zap.String("band", b.Name),
				zap.Float64s("geo_transform", m.GeoTransform[:]),
			)
		}
		if err := s.Add(b); err != nil {
			return nil, err
		}
	}
	zap.L().Debug("raster: loaded grids", zap.String("dir", dir), zap.Int("bands", len(s.Bands)),
		zap.Int("rows", s.Rows), zap.Int("cols", s.Cols))
	return s, nil
}

// WriteDir writes each band as <dir>/<name>.asc.
func WriteDir(dir string, m Meta, bands ...*Band) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "raster: mkdir %s", dir)
	}
	var out []string
	for _, b := range bands {
		p := filepath.Join(dir, b.Name+".asc")
		if err := WriteASCII(p, b, m); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
