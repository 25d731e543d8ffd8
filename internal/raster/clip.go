package raster

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ReadPolygons reads every polygon record of a shapefile. Each part of a
// record becomes one ring of the returned polygon.
func ReadPolygons(path string) ([]*geom.Polygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var polys []*geom.Polygon
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		p, ok := shape.(*shp.Polygon)
		if !ok || p == nil || p.NumParts == 0 {
			skipped++
			continue
		}
		poly, err := toPolygon(p)
		if err != nil {
			skipped++
			zap.L().Debug("raster: skipping malformed polygon", zap.Error(err))
			continue
		}
		polys = append(polys, poly)
	}
	if skipped > 0 {
		zap.L().Debug("raster: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	if len(polys) == 0 {
		return nil, eris.Errorf("raster: %s has no polygons", path)
	}
	return polys, nil
}

func toPolygon(p *shp.Polygon) (*geom.Polygon, error) {
	poly := geom.NewPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return nil, eris.Wrapf(err, "raster: ring %d", i)
		}
	}
	return poly, nil
}

// MaskFromPolygons marks the cells whose centre lies inside any polygon.
// Rings are combined even-odd, so holes are excluded whatever their
// winding.
func MaskFromPolygons(polys []*geom.Polygon, m Meta, rows, cols int) []bool {
	keep := make([]bool, rows*cols)
	bounds := make([]*geom.Bounds, len(polys))
	for i, p := range polys {
		bounds[i] = p.Bounds()
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := m.CellCenter(r, c)
			pt := geom.Coord{x, y}
			for i, p := range polys {
				if !bounds[i].OverlapsPoint(geom.XY, pt) {
					continue
				}
				if insidePolygon(p, pt) {
					keep[r*cols+c] = true
					break
				}
			}
		}
	}
	return keep
}

func insidePolygon(p *geom.Polygon, pt geom.Coord) bool {
	in := false
	for i := 0; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(geom.XY, pt, p.LinearRing(i).FlatCoords()) {
			in = !in
		}
	}
	return in
}

// ClipMaskFromShapefile reads study-area polygons and returns the cells of
// a rows x cols grid to keep.
func ClipMaskFromShapefile(path string, m Meta, rows, cols int) ([]bool, error) {
	polys, err := ReadPolygons(path)
	if err != nil {
		return nil, err
	}
	return MaskFromPolygons(polys, m, rows, cols), nil
}

// Clip applies a shapefile mask to every band in the stack.
func (s *Stack) Clip(path string) (int, error) {
	keep, err := ClipMaskFromShapefile(path, s.Meta, s.Rows, s.Cols)
	if err != nil {
		return 0, err
	}
	masked := 0
	for _, k := range keep {
		if !k {
			masked++
		}
	}
	for _, name := range s.Names() {
		if err := s.Bands[name].ApplyMask(keep); err != nil {
			return 0, err
		}
	}
	return masked, nil
}
