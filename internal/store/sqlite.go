package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS market_cache (
	id          TEXT PRIMARY KEY,
	address_key TEXT NOT NULL UNIQUE,
	payload     TEXT NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tracts (
	geoid     TEXT PRIMARY KEY,
	name      TEXT NOT NULL DEFAULT '',
	aland     INTEGER NOT NULL DEFAULT 0,
	awater    INTEGER NOT NULL DEFAULT 0,
	intpt_lat REAL NOT NULL DEFAULT 0,
	intpt_lon REAL NOT NULL DEFAULT 0,
	min_lon   REAL,
	min_lat   REAL,
	max_lon   REAL,
	max_lat   REAL,
	geom      BLOB
);

CREATE INDEX IF NOT EXISTS idx_market_cache_updated_at ON market_cache(updated_at);
CREATE INDEX IF NOT EXISTS idx_tracts_bbox ON tracts(min_lon, max_lon, min_lat, max_lat);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetMarketRecord(ctx context.Context, key string) (*CachedRecord, error) {
	var payload string
	var rec CachedRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, updated_at FROM market_cache WHERE address_key = ?`,
		key,
	).Scan(&payload, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get market record")
	}
	rec.Payload = []byte(payload)
	return &rec, nil
}

func (s *SQLiteStore) PutMarketRecord(ctx context.Context, key string, payload []byte) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO market_cache (id, address_key, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(address_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		id, key, string(payload), now,
	)
	return eris.Wrap(err, "sqlite: put market record")
}

func (s *SQLiteStore) TractArea(ctx context.Context, geoid string) (int64, error) {
	var aland int64
	err := s.db.QueryRowContext(ctx,
		`SELECT aland FROM tracts WHERE geoid = ?`,
		geoid,
	).Scan(&aland)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: tract area %s", geoid)
	}
	return aland, nil
}

func (s *SQLiteStore) TractContaining(ctx context.Context, lat, lon float64) (*Tract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT geoid, name, aland, awater, intpt_lat, intpt_lon, geom FROM tracts
		 WHERE geom IS NOT NULL
		   AND min_lon <= ? AND max_lon >= ?
		   AND min_lat <= ? AND max_lat >= ?`,
		lon, lon, lat, lat,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: tract containing")
	}
	defer rows.Close()

	var candidates []Tract
	for rows.Next() {
		var t Tract
		if err := rows.Scan(&t.GEOID, &t.Name, &t.ALand, &t.AWater, &t.IntPtLat, &t.IntPtLon, &t.Geom); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tract")
		}
		candidates = append(candidates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: tract containing iterate")
	}

	for i := range candidates {
		if geomContains(candidates[i].Geom, lon, lat) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (s *SQLiteStore) UpsertTracts(ctx context.Context, tracts []Tract) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	for _, t := range tracts {
		if len(t.Geom) == 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO tracts (geoid, name, aland, awater, intpt_lat, intpt_lon) VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT(geoid) DO UPDATE SET
				   name = excluded.name, aland = excluded.aland, awater = excluded.awater,
				   intpt_lat = excluded.intpt_lat, intpt_lon = excluded.intpt_lon`,
				t.GEOID, t.Name, t.ALand, t.AWater, t.IntPtLat, t.IntPtLon,
			)
			if err != nil {
				return count, eris.Wrapf(err, "sqlite: upsert tract %s", t.GEOID)
			}
			count++
			continue
		}

		minLon, minLat, maxLon, maxLat, boundsErr := geomBounds(t.Geom)
		if boundsErr != nil {
			return count, eris.Wrapf(boundsErr, "sqlite: tract %s geometry", t.GEOID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tracts (geoid, name, aland, awater, intpt_lat, intpt_lon, min_lon, min_lat, max_lon, max_lat, geom)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(geoid) DO UPDATE SET
			   name = excluded.name, aland = excluded.aland, awater = excluded.awater,
			   intpt_lat = excluded.intpt_lat, intpt_lon = excluded.intpt_lon,
			   min_lon = excluded.min_lon, min_lat = excluded.min_lat,
			   max_lon = excluded.max_lon, max_lat = excluded.max_lat, geom = excluded.geom`,
			t.GEOID, t.Name, t.ALand, t.AWater, t.IntPtLat, t.IntPtLon,
			minLon, minLat, maxLon, maxLat, t.Geom,
		)
		if err != nil {
			return count, eris.Wrapf(err, "sqlite: upsert tract %s", t.GEOID)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, eris.Wrap(err, "sqlite: commit tx")
	}
	return count, nil
}
