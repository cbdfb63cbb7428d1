package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
	"github.com/sells-group/marketdata/internal/store"
	"github.com/sells-group/marketdata/pkg/geocode"
	"github.com/sells-group/marketdata/pkg/walkscore"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetMarketRecord(ctx context.Context, key string) (*store.CachedRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.CachedRecord), args.Error(1)
}

func (m *mockStore) PutMarketRecord(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

func (m *mockStore) TractArea(ctx context.Context, geoid string) (int64, error) {
	args := m.Called(ctx, geoid)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) TractContaining(ctx context.Context, lat, lon float64) (*store.Tract, error) {
	args := m.Called(ctx, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Tract), args.Error(1)
}

func (m *mockStore) UpsertTracts(ctx context.Context, tracts []store.Tract) (int, error) {
	args := m.Called(ctx, tracts)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Geocode Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Locate(ctx context.Context, address string) (*geocode.Location, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Location), args.Error(1)
}

func (m *mockGeocoder) Geographies(ctx context.Context, lat, lon float64) (*geocode.Geography, error) {
	args := m.Called(ctx, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Geography), args.Error(1)
}

// --- Census Mock ---

type mockCensusClient struct {
	mock.Mock
}

func (m *mockCensusClient) FetchVariables(ctx context.Context, geo model.Geography, year int, level model.GeoLevel, codes []string) (*census.VariableResult, error) {
	args := m.Called(ctx, geo, year, level, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*census.VariableResult), args.Error(1)
}

func (m *mockCensusClient) FetchComponents(ctx context.Context, geo model.Geography, year int) (*census.Components, error) {
	args := m.Called(ctx, geo, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*census.Components), args.Error(1)
}

func (m *mockCensusClient) FetchFlows(ctx context.Context, geo model.Geography, year int) (*census.Flows, error) {
	args := m.Called(ctx, geo, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*census.Flows), args.Error(1)
}

// --- Walk Score Mock ---

type mockWalkscoreClient struct {
	mock.Mock
}

func (m *mockWalkscoreClient) Score(ctx context.Context, address string, lat, lon float64) (*walkscore.ScoreResult, error) {
	args := m.Called(ctx, address, lat, lon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*walkscore.ScoreResult), args.Error(1)
}

// --- Ensure interface compliance ---
var (
	_ store.Store      = (*mockStore)(nil)
	_ geocode.Client   = (*mockGeocoder)(nil)
	_ census.Client    = (*mockCensusClient)(nil)
	_ walkscore.Client = (*mockWalkscoreClient)(nil)
)
