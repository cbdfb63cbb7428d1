package tiger

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketdata/internal/store"
)

// ParseShapefile reads a TRACT shapefile and returns tract rows ready for
// upserting. Records without a GEOID or a usable polygon are skipped.
func ParseShapefile(shpPath string) ([]store.Tract, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	for _, col := range tractColumns {
		if _, ok := fieldIdx[col]; !ok {
			return nil, eris.Errorf("tiger: shapefile %s missing attribute %q", shpPath, col)
		}
	}

	attr := func(col string) string {
		val := strings.TrimRight(reader.Attribute(fieldIdx[col]), "\x00")
		return strings.TrimSpace(val)
	}

	var tracts []store.Tract
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		geoid := attr("geoid")
		if geoid == "" {
			skipped++
			continue
		}

		wkb, encErr := EncodeWKB(shape)
		if encErr != nil || wkb == nil {
			skipped++
			continue
		}

		tracts = append(tracts, store.Tract{
			GEOID:    geoid,
			Name:     attr("namelsad"),
			ALand:    parseArea(attr("aland")),
			AWater:   parseArea(attr("awater")),
			IntPtLat: parseSignedCoord(attr("intptlat")),
			IntPtLon: parseSignedCoord(attr("intptlon")),
			Geom:     wkb,
		})
	}

	if skipped > 0 {
		zap.L().Debug("tiger: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return tracts, nil
}

func parseArea(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseSignedCoord parses the DBF internal-point format, which writes an
// explicit leading sign ("+37.7562210").
func parseSignedCoord(s string) float64 {
	s = strings.TrimPrefix(s, "+")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
