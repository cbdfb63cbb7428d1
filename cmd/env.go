package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/pipeline"
	"github.com/sells-group/marketdata/internal/store"
	"github.com/sells-group/marketdata/pkg/geocode"
	"github.com/sells-group/marketdata/pkg/walkscore"
)

// lookupEnv holds the store, upstream clients, and the lookup service
// shared by the serve/lookup/batch commands.
type lookupEnv struct {
	Store   store.Store
	Service *pipeline.Service
}

// Close releases resources held by the environment.
func (e *lookupEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "marketdata.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "redis":
		ttl := time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour
		return store.NewRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPass, cfg.Store.RedisDB, ttl)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for the given mode, opens the store, builds the
// upstream clients, and assembles the lookup service. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string) (*lookupEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	geocodeClient := geocode.NewClient(
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second}),
	)

	censusClient := census.NewClient(
		census.WithAPIKey(cfg.Census.APIKey),
		census.WithBaseURL(cfg.Census.DataBaseURL),
		census.WithRateLimit(cfg.Census.RateLimit),
		census.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Census.TimeoutSecs) * time.Second}),
	)

	// An empty key yields a client that silently skips walkability.
	wsOpts := []walkscore.Option{}
	if cfg.Walkscore.BaseURL != "" {
		wsOpts = append(wsOpts, walkscore.WithBaseURL(cfg.Walkscore.BaseURL))
	}
	walkscoreClient := walkscore.NewClient(cfg.Walkscore.APIKey, wsOpts...)

	varsets, err := census.LoadVarsets()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	svc := pipeline.NewService(cfg, st, geocodeClient, censusClient, walkscoreClient, varsets.DemographicSet())

	return &lookupEnv{Store: st, Service: svc}, nil
}
