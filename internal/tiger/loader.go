package tiger

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marketdata/internal/fetch"
	"github.com/sells-group/marketdata/internal/store"
)

// LoadOptions configures a TIGER tract load.
type LoadOptions struct {
	Year        int      // TIGER/Line data year (default 2023)
	States      []string // abbreviations or FIPS codes; empty = all 50 + DC
	BaseURL     string   // mirror base; empty = www2.census.gov
	TempDir     string   // download directory
	Concurrency int      // parallel state downloads (default 3)
}

// LoadResult summarizes a completed load.
type LoadResult struct {
	States int
	Tracts int
}

// Load downloads each state's TRACT shapefile, parses boundaries, and
// upserts the tract rows into the store. States run in a bounded errgroup;
// the first failing state aborts the remainder.
func Load(ctx context.Context, st store.Store, f fetch.Fetcher, opts LoadOptions) (*LoadResult, error) {
	if opts.Year == 0 {
		opts.Year = 2023
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.TempDir == "" {
		opts.TempDir = "/tmp/marketdata-tiger"
	}

	states, err := NormalizeStates(opts.States)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.Int("year", opts.Year),
	)
	log.Info("loading tract boundaries", zap.Int("states", len(states)))

	var total atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, fips := range states {
		g.Go(func() error {
			n, err := loadState(gCtx, st, f, fips, opts)
			if err != nil {
				return err
			}
			total.Add(int64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("tract load complete",
		zap.Int("states", len(states)),
		zap.Int64("tracts", total.Load()),
	)

	return &LoadResult{States: len(states), Tracts: int(total.Load())}, nil
}

// loadState downloads, parses, and upserts one state's tracts.
func loadState(ctx context.Context, st store.Store, f fetch.Fetcher, stateFIPS string, opts LoadOptions) (int, error) {
	abbr, _ := AbbrFromFIPS(stateFIPS)
	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.String("state", abbr),
		zap.String("fips", stateFIPS),
	)

	start := time.Now()

	url := DownloadURL(opts.BaseURL, opts.Year, stateFIPS)
	destDir := filepath.Join(opts.TempDir, stateFIPS)
	shpPath, err := DownloadShapefile(ctx, f, url, destDir)
	if err != nil {
		return 0, eris.Wrapf(err, "tiger: download tracts for %s", stateFIPS)
	}

	tracts, err := ParseShapefile(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "tiger: parse tracts for %s", stateFIPS)
	}
	if len(tracts) == 0 {
		return 0, eris.Errorf("tiger: no tracts parsed from %s", shpPath)
	}

	n, err := st.UpsertTracts(ctx, tracts)
	if err != nil {
		return 0, eris.Wrapf(err, "tiger: upsert tracts for %s", stateFIPS)
	}

	log.Info("state loaded",
		zap.Int("tracts", n),
		zap.Duration("duration", time.Since(start)),
	)

	return n, nil
}
