package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/marketdata/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot cache path.
var preparedStatements = map[string]string{
	"get_market_record": `SELECT payload, updated_at FROM market_cache WHERE address_key = $1`,
	"put_market_record": `INSERT INTO market_cache (id, address_key, payload, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (address_key) DO UPDATE SET payload = $3, updated_at = $4`,
	"get_tract_area":    `SELECT aland FROM tracts WHERE geoid = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the tract shapefile loader).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Tract boundaries are kept as raw EWKB in a bytea column with a plain
// bounding-box prefilter, so the store works on unextended PostgreSQL and
// containment runs through the same decoder as the sqlite driver.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS market_cache (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	address_key TEXT NOT NULL UNIQUE,
	payload     JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_market_cache_address_key ON market_cache(address_key);
CREATE INDEX IF NOT EXISTS idx_market_cache_updated_at ON market_cache(updated_at);

CREATE TABLE IF NOT EXISTS tracts (
	geoid     TEXT PRIMARY KEY,
	name      TEXT NOT NULL DEFAULT '',
	aland     BIGINT NOT NULL DEFAULT 0,
	awater    BIGINT NOT NULL DEFAULT 0,
	intpt_lat DOUBLE PRECISION NOT NULL DEFAULT 0,
	intpt_lon DOUBLE PRECISION NOT NULL DEFAULT 0,
	min_lon   DOUBLE PRECISION,
	min_lat   DOUBLE PRECISION,
	max_lon   DOUBLE PRECISION,
	max_lat   DOUBLE PRECISION,
	geom      BYTEA
);

CREATE INDEX IF NOT EXISTS idx_tracts_bbox ON tracts(min_lon, max_lon, min_lat, max_lat);
`

// tractColumns is the full column list for shapefile-loaded rows.
var tractColumns = []string{
	"geoid", "name", "aland", "awater", "intpt_lat", "intpt_lon",
	"min_lon", "min_lat", "max_lon", "max_lat", "geom",
}

// tractMetaColumns omits the geometry columns so gazetteer rows never
// clobber previously loaded boundaries.
var tractMetaColumns = []string{
	"geoid", "name", "aland", "awater", "intpt_lat", "intpt_lon",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetMarketRecord(ctx context.Context, key string) (*CachedRecord, error) {
	var rec CachedRecord
	err := s.pool.QueryRow(ctx,
		`SELECT payload, updated_at FROM market_cache WHERE address_key = $1`,
		key,
	).Scan(&rec.Payload, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get market record")
	}
	return &rec, nil
}

func (s *PostgresStore) PutMarketRecord(ctx context.Context, key string, payload []byte) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_cache (id, address_key, payload, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (address_key) DO UPDATE SET payload = $3, updated_at = $4`,
		id, key, payload, now,
	)
	return eris.Wrap(err, "postgres: put market record")
}

func (s *PostgresStore) TractArea(ctx context.Context, geoid string) (int64, error) {
	var aland int64
	err := s.pool.QueryRow(ctx,
		`SELECT aland FROM tracts WHERE geoid = $1`,
		geoid,
	).Scan(&aland)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrapf(err, "postgres: tract area %s", geoid)
	}
	return aland, nil
}

func (s *PostgresStore) TractContaining(ctx context.Context, lat, lon float64) (*Tract, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT geoid, name, aland, awater, intpt_lat, intpt_lon, geom FROM tracts
		 WHERE geom IS NOT NULL
		   AND min_lon <= $1 AND max_lon >= $1
		   AND min_lat <= $2 AND max_lat >= $2`,
		lon, lat,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: tract containing")
	}
	defer rows.Close()

	var candidates []Tract
	for rows.Next() {
		var t Tract
		if err := rows.Scan(&t.GEOID, &t.Name, &t.ALand, &t.AWater, &t.IntPtLat, &t.IntPtLon, &t.Geom); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tract")
		}
		candidates = append(candidates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: tract containing iterate")
	}

	for i := range candidates {
		if geomContains(candidates[i].Geom, lon, lat) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (s *PostgresStore) UpsertTracts(ctx context.Context, tracts []Tract) (int, error) {
	var withGeom, metaOnly [][]any
	for _, t := range tracts {
		if len(t.Geom) == 0 {
			metaOnly = append(metaOnly, []any{t.GEOID, t.Name, t.ALand, t.AWater, t.IntPtLat, t.IntPtLon})
			continue
		}
		minLon, minLat, maxLon, maxLat, err := geomBounds(t.Geom)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: tract %s geometry", t.GEOID)
		}
		withGeom = append(withGeom, []any{
			t.GEOID, t.Name, t.ALand, t.AWater, t.IntPtLat, t.IntPtLon,
			minLon, minLat, maxLon, maxLat, t.Geom,
		})
	}

	var total int64
	if len(withGeom) > 0 {
		n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "tracts",
			Columns:      tractColumns,
			ConflictKeys: []string{"geoid"},
		}, withGeom)
		if err != nil {
			return int(total), eris.Wrap(err, "postgres: upsert tracts")
		}
		total += n
	}
	if len(metaOnly) > 0 {
		n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "tracts",
			Columns:      tractMetaColumns,
			ConflictKeys: []string{"geoid"},
		}, metaOnly)
		if err != nil {
			return int(total), eris.Wrap(err, "postgres: upsert tract metadata")
		}
		total += n
	}
	return int(total), nil
}
