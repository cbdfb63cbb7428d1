package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/config"
	"github.com/sells-group/marketdata/internal/metrics"
	"github.com/sells-group/marketdata/internal/model"
	"github.com/sells-group/marketdata/internal/store"
	"github.com/sells-group/marketdata/pkg/geocode"
	"github.com/sells-group/marketdata/pkg/walkscore"
)

// Service orchestrates address lookups: cache gate, geocoding, the source
// fan-out, derived metrics, and the projection.
type Service struct {
	cfg       *config.Config
	store     store.Store
	geocode   geocode.Client
	census    census.Client
	walkscore walkscore.Client
	demoCodes []string
}

// NewService creates a Service with all dependencies.
func NewService(
	cfg *config.Config,
	st store.Store,
	geocodeClient geocode.Client,
	censusClient census.Client,
	walkscoreClient walkscore.Client,
	demoCodes []string,
) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		geocode:   geocodeClient,
		census:    censusClient,
		walkscore: walkscoreClient,
		demoCodes: demoCodes,
	}
}

// Lookup resolves an address to its market record, serving a cached copy when
// one is fresh. Errors wrap ErrNotFound (no geography or no data for it) or
// ErrUnavailable (a mandatory upstream failed).
func (s *Service) Lookup(ctx context.Context, address string) (*model.MarketRecord, error) {
	return s.lookup(ctx, address, true)
}

// Refresh recomputes a record, ignoring any cached copy but replacing it.
func (s *Service) Refresh(ctx context.Context, address string) (*model.MarketRecord, error) {
	return s.lookup(ctx, address, false)
}

func (s *Service) lookup(ctx context.Context, address string, useCache bool) (*model.MarketRecord, error) {
	timer := prometheus.NewTimer(metrics.LookupDuration)
	defer timer.ObserveDuration()

	log := zap.L().With(zap.String("address", address))
	key := CacheKey(address)

	if useCache {
		if record := s.cachedRecord(ctx, key); record != nil {
			log.Debug("pipeline: cache hit")
			metrics.CacheHits.Inc()
			metrics.Lookups.WithLabelValues("hit").Inc()
			return record, nil
		}
	}

	record, err := s.compute(ctx, address)
	if err != nil {
		switch {
		case eris.Is(err, ErrNotFound):
			metrics.Lookups.WithLabelValues("not_found").Inc()
		case eris.Is(err, ErrUnavailable):
			metrics.Lookups.WithLabelValues("unavailable").Inc()
		default:
			metrics.Lookups.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	s.cacheRecord(ctx, key, record)
	metrics.Lookups.WithLabelValues("computed").Inc()
	return record, nil
}

// compute runs the uncached path: geocode, fan out, derive, project, assemble.
func (s *Service) compute(ctx context.Context, address string) (*model.MarketRecord, error) {
	loc, err := s.geocode.Locate(ctx, address)
	if err != nil {
		if eris.Is(err, geocode.ErrNoMatch) {
			return nil, eris.Wrapf(ErrNotFound, "pipeline: address %q", address)
		}
		return nil, eris.Wrapf(ErrUnavailable, "pipeline: geocoder: %v", err)
	}
	coords := model.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}

	geo, err := s.resolveGeography(ctx, loc)
	if err != nil {
		return nil, err
	}

	res, err := s.fanOut(ctx, *geo, address, coords)
	if err != nil {
		return nil, err
	}

	basePop, baseYear := projectionBase(res, s.cfg.Census.LatestYear)
	projection := projectPopulation(basePop, baseYear, res.CountyTrend, s.cfg.Census.ProjectionYears)

	return assembleRecord(address, *geo, coords, s.cfg.Census.LatestYear, res, projection)
}

// resolveGeography turns coordinates into tract identifiers. When the
// geocoder's geography step fails, stored tract boundaries answer instead, so
// an outage of one upstream endpoint does not take down lookups for areas the
// store covers.
func (s *Service) resolveGeography(ctx context.Context, loc *geocode.Location) (*model.Geography, error) {
	geo, err := s.geocode.Geographies(ctx, loc.Latitude, loc.Longitude)
	if err == nil {
		g := &model.Geography{
			StateFIPS:  geo.StateFIPS,
			CountyFIPS: geo.CountyFIPS,
			TractFIPS:  geo.TractFIPS,
			Name:       geo.TractName,
			CountyName: geo.CountyName,
			StateName:  geo.StateName,
			LandAreaM2: geo.LandAreaM2,
		}
		s.backfillLandArea(ctx, g)
		return g, nil
	}

	zap.L().Warn("pipeline: geography lookup failed, trying stored boundaries",
		zap.Float64("lat", loc.Latitude),
		zap.Float64("lon", loc.Longitude),
		zap.Error(err),
	)
	if g := s.storedGeography(ctx, loc.Latitude, loc.Longitude); g != nil {
		return g, nil
	}

	if eris.Is(err, geocode.ErrNoGeography) {
		return nil, eris.Wrap(ErrNotFound, "pipeline: no census tract at coordinates")
	}
	return nil, eris.Wrapf(ErrUnavailable, "pipeline: geography lookup: %v", err)
}

// storedGeography resolves a point against loaded tract boundaries. Nil when
// the store has no containing tract or does not hold tract data at all.
func (s *Service) storedGeography(ctx context.Context, lat, lon float64) *model.Geography {
	tract, err := s.store.TractContaining(ctx, lat, lon)
	if err != nil {
		if !eris.Is(err, store.ErrUnsupported) {
			zap.L().Warn("pipeline: stored boundary lookup failed", zap.Error(err))
		}
		return nil
	}
	if tract == nil || len(tract.GEOID) != 11 {
		return nil
	}
	return &model.Geography{
		StateFIPS:  tract.GEOID[0:2],
		CountyFIPS: tract.GEOID[2:5],
		TractFIPS:  tract.GEOID[5:11],
		Name:       tract.Name,
		LandAreaM2: tract.ALand,
	}
}

// backfillLandArea fills a zero land area from Gazetteer data in the store.
// The geocoder omits AREALAND on some vintages.
func (s *Service) backfillLandArea(ctx context.Context, g *model.Geography) {
	if g.LandAreaM2 > 0 {
		return
	}
	area, err := s.store.TractArea(ctx, g.TractGEOID())
	if err != nil {
		if !eris.Is(err, store.ErrUnsupported) {
			zap.L().Debug("pipeline: tract area lookup failed",
				zap.String("geoid", g.TractGEOID()),
				zap.Error(err),
			)
		}
		return
	}
	g.LandAreaM2 = area
}

// cachedRecord returns the cached record for key when present, fresh, and
// readable. Store failures are logged and treated as misses; the cache must
// never fail a lookup.
func (s *Service) cachedRecord(ctx context.Context, key string) *model.MarketRecord {
	cached, err := s.store.GetMarketRecord(ctx, key)
	if err != nil {
		zap.L().Warn("pipeline: cache read failed", zap.Error(err))
		return nil
	}
	if cached == nil {
		metrics.CacheMisses.WithLabelValues("absent").Inc()
		return nil
	}

	ttl := time.Duration(s.cfg.Cache.TTLDays) * 24 * time.Hour
	if time.Since(cached.UpdatedAt) > ttl {
		metrics.CacheMisses.WithLabelValues("stale").Inc()
		return nil
	}

	var record model.MarketRecord
	if err := json.Unmarshal(cached.Payload, &record); err != nil {
		zap.L().Warn("pipeline: cached payload unreadable", zap.String("key", key), zap.Error(err))
		metrics.CacheMisses.WithLabelValues("invalid").Inc()
		return nil
	}
	return &record
}

// cacheRecord writes a computed record back to the store. Failures are logged
// and swallowed; the next lookup recomputes.
func (s *Service) cacheRecord(ctx context.Context, key string, record *model.MarketRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		zap.L().Warn("pipeline: marshal record for cache", zap.Error(err))
		return
	}
	if err := s.store.PutMarketRecord(ctx, key, payload); err != nil {
		zap.L().Warn("pipeline: cache write failed", zap.String("key", key), zap.Error(err))
	}
}
