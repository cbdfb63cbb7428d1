package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrUnsupported marks operations a driver cannot serve, such as tract
// lookups on redis. Callers treat it as "no local data", not a failure.
var ErrUnsupported = eris.New("store: operation not supported by driver")

// CachedRecord is a cached market record payload and its write time.
// Freshness against the configured TTL is decided by the caller.
type CachedRecord struct {
	Payload   []byte
	UpdatedAt time.Time
}

// Tract is one census tract row: identity, land and water area in square
// meters, internal point, and an optional EWKB multipolygon boundary.
type Tract struct {
	GEOID    string
	Name     string
	ALand    int64
	AWater   int64
	IntPtLat float64
	IntPtLon float64
	Geom     []byte
}

// Store is the persistence interface for the market-data service: the
// market record cache plus locally loaded tract reference data used by
// the geocode fallback. Cache misses and absent tracts are (nil, nil)
// and (0, nil) respectively, never errors.
type Store interface {
	// Market record cache
	GetMarketRecord(ctx context.Context, key string) (*CachedRecord, error)
	PutMarketRecord(ctx context.Context, key string, payload []byte) error

	// Tract reference data
	TractArea(ctx context.Context, geoid string) (int64, error)
	TractContaining(ctx context.Context, lat, lon float64) (*Tract, error)
	UpsertTracts(ctx context.Context, tracts []Tract) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*RedisStore)(nil)
)
