// Package gazetteer loads the Census national tract gazetteer, a
// tab-separated file carrying land and water area plus internal-point
// coordinates for every tract. It is the lightweight alternative to a
// full TIGER shapefile load when only area data is needed, and it never
// overwrites boundary geometry already in the store.
package gazetteer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/marketdata/internal/fetch"
	"github.com/sells-group/marketdata/internal/store"
)

const defaultURL = "ftp://ftp2.census.gov/geo/docs/maps-data/data/gazetteer/2023_Gazetteer/2023_Gaz_tracts_national.zip"

// upsertBatch bounds how many tract rows accumulate before a store flush.
const upsertBatch = 10000

// requiredColumns are the gazetteer header names the parser needs. The
// file spells longitude INTPTLONG, unlike the TIGER DBF's INTPTLON.
var requiredColumns = []string{"GEOID", "ALAND", "AWATER", "INTPTLAT", "INTPTLONG"}

// LoadOptions configures a gazetteer load.
type LoadOptions struct {
	URL     string // zip location; empty = the national tract gazetteer
	TempDir string // download/extract scratch (default /tmp/marketdata-gazetteer)
}

// LoadResult summarizes a completed load.
type LoadResult struct {
	Tracts int
}

// Load downloads the gazetteer zip, streams the tab-separated rows, and
// upserts geometry-less tract metadata in batches.
func Load(ctx context.Context, st store.Store, f fetch.Fetcher, opts LoadOptions) (*LoadResult, error) {
	if opts.URL == "" {
		opts.URL = defaultURL
	}
	if opts.TempDir == "" {
		opts.TempDir = "/tmp/marketdata-gazetteer"
	}

	log := zap.L().With(
		zap.String("component", "gazetteer"),
		zap.String("url", opts.URL),
	)
	start := time.Now()

	txtPath, err := download(ctx, f, opts.URL, opts.TempDir)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(txtPath)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: open extracted file")
	}
	defer file.Close() //nolint:errcheck

	// The bureau publishes gazetteer files in Latin-1.
	dec := charmap.ISO8859_1.NewDecoder().Reader(file)

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetch.StreamCSV(ctx, dec, fetch.CSVOptions{
		Delimiter:  '\t',
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var cols map[string]int
	var skipped, total int
	pending := make([]store.Tract, 0, upsertBatch)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, upErr := st.UpsertTracts(ctx, pending)
		if upErr != nil {
			return eris.Wrap(upErr, "gazetteer: upsert tracts")
		}
		total += n
		pending = make([]store.Tract, 0, upsertBatch)
		return nil
	}

	for row := range rowCh {
		if cols == nil {
			// The header is buffered before the first row is sent.
			cols, err = columnIndex(<-headerCh)
			if err != nil {
				for range rowCh {
				}
				return nil, err
			}
		}

		tract, ok := parseRow(cols, row)
		if !ok {
			skipped++
			continue
		}
		pending = append(pending, tract)

		if len(pending) >= upsertBatch {
			if err := flush(); err != nil {
				for range rowCh {
				}
				return nil, err
			}
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if total == 0 {
		return nil, eris.Errorf("gazetteer: no tract rows parsed from %s", txtPath)
	}

	log.Info("gazetteer load complete",
		zap.Int("tracts", total),
		zap.Int("skipped", skipped),
		zap.Duration("duration", time.Since(start)),
	)

	return &LoadResult{Tracts: total}, nil
}

// download fetches the gazetteer zip (reusing one already on disk) and
// extracts its single text file.
func download(ctx context.Context, f fetch.Fetcher, url, tempDir string) (string, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", eris.Wrap(err, "gazetteer: create temp dir")
	}

	parts := strings.Split(url, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(tempDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		zap.L().Debug("gazetteer: zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		if _, err := f.DownloadToFile(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "gazetteer: download")
		}
	}

	txtPath, err := fetch.ExtractZIPSingle(zipPath, tempDir)
	if err != nil {
		return "", eris.Wrap(err, "gazetteer: extract zip")
	}
	return txtPath, nil
}

// columnIndex maps required header names to positions.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, eris.Errorf("gazetteer: missing column %q in header", col)
		}
	}
	return idx, nil
}

// parseRow converts one gazetteer row into a geometry-less tract record.
func parseRow(cols map[string]int, row []string) (store.Tract, bool) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	geoid := field("GEOID")
	if len(geoid) != 11 {
		return store.Tract{}, false
	}

	return store.Tract{
		GEOID:    geoid,
		Name:     tractName(geoid),
		ALand:    parseInt64(field("ALAND")),
		AWater:   parseInt64(field("AWATER")),
		IntPtLat: parseFloat(field("INTPTLAT")),
		IntPtLon: parseFloat(field("INTPTLONG")),
	}, true
}

// tractName renders the display name for a tract GEOID the way TIGER's
// NAMELSAD field does: the 6-digit tract code carries two implied
// decimals, so 020302 becomes "Census Tract 203.02".
func tractName(geoid string) string {
	code := geoid[5:]
	whole := strings.TrimLeft(code[:4], "0")
	if whole == "" {
		whole = "0"
	}
	if frac := code[4:]; frac != "00" {
		return "Census Tract " + whole + "." + frac
	}
	return "Census Tract " + whole
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
