package tiger

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// EncodeWKB converts a shapefile polygon to EWKB bytes with SRID 4326,
// promoting it to a multipolygon so coastal tracts with island parts
// round-trip the same as simple ones. Returns nil, nil for empty or
// non-polygon shapes.
func EncodeWKB(shape shp.Shape) ([]byte, error) {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		poly := partToPolygon(p, i)
		if poly == nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("tiger: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil, nil
	}

	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: encode WKB")
	}
	return data, nil
}

// partToPolygon builds a single-ring polygon from one shapefile part.
// Shapefile parts are rings; the store's containment test expects each
// as its own polygon.
func partToPolygon(p *shp.Polygon, part int32) *geom.Polygon {
	start := p.Parts[part]
	end := int32(len(p.Points))
	if part+1 < p.NumParts {
		end = p.Parts[part+1]
	}

	flat := make([]float64, 0, (end-start)*2)
	for j := start; j < end; j++ {
		flat = append(flat, p.Points[j].X, p.Points[j].Y)
	}

	poly := geom.NewPolygon(geom.XY)
	if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
		zap.L().Debug("tiger: skipping malformed polygon ring", zap.Int32("part", part), zap.Error(err))
		return nil
	}
	return poly
}
