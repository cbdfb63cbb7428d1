package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
)

// geomBounds decodes an EWKB geometry and returns its bounding box as
// (minLon, minLat, maxLon, maxLat).
func geomBounds(data []byte) (minLon, minLat, maxLon, maxLat float64, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, 0, 0, eris.Wrap(err, "store: decode geometry")
	}
	b := g.Bounds()
	return b.Min(0), b.Min(1), b.Max(0), b.Max(1), nil
}

// geomContains reports whether the EWKB polygon or multipolygon contains
// the point. Interior rings are holes. Undecodable geometry never
// contains anything.
func geomContains(data []byte, lon, lat float64) bool {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return false
	}

	pt := geom.Coord{lon, lat}
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, pt)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), pt) {
				return true
			}
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}
