package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
	"github.com/sells-group/marketdata/internal/store"
	"github.com/sells-group/marketdata/pkg/geocode"
)

type serviceFixture struct {
	service   *Service
	store     *mockStore
	geocoder  *mockGeocoder
	census    *mockCensusClient
	walkscore *mockWalkscoreClient
}

func newServiceFixture() *serviceFixture {
	st := &mockStore{}
	gc := &mockGeocoder{}
	cc := &mockCensusClient{}
	ws := &mockWalkscoreClient{}
	return &serviceFixture{
		service:   NewService(testConfig(), st, gc, cc, ws, []string{census.VarMedianAge}),
		store:     st,
		geocoder:  gc,
		census:    cc,
		walkscore: ws,
	}
}

func (f *serviceFixture) expectLocate() {
	f.geocoder.On("Locate", mock.Anything, testAddress).Return(&geocode.Location{
		Latitude:       testCoords.Lat,
		Longitude:      testCoords.Lon,
		MatchedAddress: "740 BRYANT ST, SAN FRANCISCO, CA, 94103",
	}, nil)
}

func (f *serviceFixture) expectGeographies() {
	f.geocoder.On("Geographies", mock.Anything, testCoords.Lat, testCoords.Lon).Return(&geocode.Geography{
		StateFIPS:  "06",
		CountyFIPS: "075",
		TractFIPS:  "020600",
		TractName:  "Census Tract 206",
		CountyName: "San Francisco County",
		StateName:  "California",
		LandAreaM2: 486422,
	}, nil)
}

// expectSources wires every census and walkscore call of the fan-out.
func (f *serviceFixture) expectSources() {
	f.census.On("FetchVariables", mock.Anything, mock.Anything, 2023, model.LevelTract, []string{census.VarMedianAge}).
		Return(&census.VariableResult{
			Name: "Census Tract 206",
			Vars: model.VariableMap{census.VarMedianAge: model.Float(38.2)},
		}, nil)
	for level, pop := range map[model.GeoLevel]float64{
		model.LevelTract:    5000,
		model.LevelCounty:   100000,
		model.LevelState:    1000000,
		model.LevelNational: 330000000,
	} {
		f.census.On("FetchVariables", mock.Anything, mock.Anything, mock.Anything, level, []string{census.VarTotalPopulation}).
			Return(popResult(pop), nil)
	}
	f.census.On("FetchComponents", mock.Anything, mock.Anything, 2023).
		Return(&census.Components{
			Births: model.Int(1200), Deaths: model.Int(800),
			NetMig: model.Int(1500), Population: model.Int(100000),
		}, nil)
	f.census.On("FetchFlows", mock.Anything, mock.Anything, 2022).
		Return(&census.Flows{MovedIn: model.Int(8000), MovedOut: model.Int(6500)}, nil)
	f.walkscore.On("Score", mock.Anything, testAddress, testCoords.Lat, testCoords.Lon).
		Return(nil, nil)
}

func TestLookup_CacheHit(t *testing.T) {
	f := newServiceFixture()

	cached := &model.MarketRecord{
		SearchAddress:   testAddress,
		FIPS:            "06075020600",
		TotalPopulation: 5306,
	}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	f.store.On("GetMarketRecord", mock.Anything, CacheKey(testAddress)).Return(&store.CachedRecord{
		Payload:   payload,
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	}, nil)

	record, err := f.service.Lookup(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, 5306, record.TotalPopulation)
	assert.Equal(t, "06075020600", record.FIPS)
	f.geocoder.AssertNotCalled(t, "Locate")
	f.store.AssertNotCalled(t, "PutMarketRecord")
}

func TestLookup_StaleEntryRecomputed(t *testing.T) {
	f := newServiceFixture()

	old := &model.MarketRecord{TotalPopulation: 1}
	payload, err := json.Marshal(old)
	require.NoError(t, err)

	f.store.On("GetMarketRecord", mock.Anything, CacheKey(testAddress)).Return(&store.CachedRecord{
		Payload:   payload,
		UpdatedAt: time.Now().UTC().Add(-31 * 24 * time.Hour),
	}, nil)
	f.store.On("PutMarketRecord", mock.Anything, CacheKey(testAddress), mock.Anything).Return(nil)
	f.expectLocate()
	f.expectGeographies()
	f.expectSources()

	record, err := f.service.Lookup(context.Background(), testAddress)
	require.NoError(t, err)
	assert.NotEqual(t, 1, record.TotalPopulation)
	f.store.AssertCalled(t, "PutMarketRecord", mock.Anything, CacheKey(testAddress), mock.Anything)
}

func TestLookup_CorruptEntryRecomputed(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, CacheKey(testAddress)).Return(&store.CachedRecord{
		Payload:   []byte("{not json"),
		UpdatedAt: time.Now().UTC(),
	}, nil)
	f.store.On("PutMarketRecord", mock.Anything, CacheKey(testAddress), mock.Anything).Return(nil)
	f.expectLocate()
	f.expectGeographies()
	f.expectSources()

	record, err := f.service.Lookup(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, "06075020600", record.FIPS)
}

func TestLookup_CacheReadFailureIsMiss(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, CacheKey(testAddress)).Return(nil, eris.New("redis down"))
	f.store.On("PutMarketRecord", mock.Anything, CacheKey(testAddress), mock.Anything).Return(nil)
	f.expectLocate()
	f.expectGeographies()
	f.expectSources()

	record, err := f.service.Lookup(context.Background(), testAddress)
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestLookup_ComputedRecordCached(t *testing.T) {
	f := newServiceFixture()

	var written []byte
	f.store.On("GetMarketRecord", mock.Anything, CacheKey(testAddress)).Return(nil, nil)
	f.store.On("PutMarketRecord", mock.Anything, CacheKey(testAddress), mock.MatchedBy(func(p []byte) bool {
		written = p
		return true
	})).Return(nil)
	f.expectLocate()
	f.expectGeographies()
	f.expectSources()

	record, err := f.service.Lookup(context.Background(), testAddress)
	require.NoError(t, err)

	var cached model.MarketRecord
	require.NoError(t, json.Unmarshal(written, &cached))
	assert.Equal(t, record.FIPS, cached.FIPS)
	assert.Equal(t, record.TotalPopulation, cached.TotalPopulation)
}

func TestLookup_CacheWriteFailureIgnored(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, CacheKey(testAddress)).Return(nil, nil)
	f.store.On("PutMarketRecord", mock.Anything, CacheKey(testAddress), mock.Anything).Return(eris.New("disk full"))
	f.expectLocate()
	f.expectGeographies()
	f.expectSources()

	record, err := f.service.Lookup(context.Background(), testAddress)
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestLookup_AddressNotMatched(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, mock.Anything).Return(nil, nil)
	f.geocoder.On("Locate", mock.Anything, testAddress).
		Return(nil, eris.Wrap(geocode.ErrNoMatch, "address"))

	_, err := f.service.Lookup(context.Background(), testAddress)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_GeocoderDown(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, mock.Anything).Return(nil, nil)
	f.geocoder.On("Locate", mock.Anything, testAddress).
		Return(nil, eris.New("connection refused"))

	_, err := f.service.Lookup(context.Background(), testAddress)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLookup_GeographyOutageFallsBackToStore(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, mock.Anything).Return(nil, nil)
	f.store.On("PutMarketRecord", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.expectLocate()
	f.geocoder.On("Geographies", mock.Anything, testCoords.Lat, testCoords.Lon).
		Return(nil, eris.New("geocoder 500"))
	f.store.On("TractContaining", mock.Anything, testCoords.Lat, testCoords.Lon).Return(&store.Tract{
		GEOID: "06075020600",
		Name:  "Census Tract 206",
		ALand: 486422,
	}, nil)
	f.expectSources()

	record, err := f.service.Lookup(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, "06075020600", record.FIPS)
	assert.Equal(t, int64(486422), record.TractAreaSqMeters)
}

func TestLookup_NoTractAtCoordinates(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, mock.Anything).Return(nil, nil)
	f.expectLocate()
	f.geocoder.On("Geographies", mock.Anything, testCoords.Lat, testCoords.Lon).
		Return(nil, eris.Wrap(geocode.ErrNoGeography, "point"))
	f.store.On("TractContaining", mock.Anything, testCoords.Lat, testCoords.Lon).Return(nil, nil)

	_, err := f.service.Lookup(context.Background(), testAddress)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_GeographyOutageWithoutStoredTracts(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, mock.Anything).Return(nil, nil)
	f.expectLocate()
	f.geocoder.On("Geographies", mock.Anything, testCoords.Lat, testCoords.Lon).
		Return(nil, eris.New("geocoder 500"))
	f.store.On("TractContaining", mock.Anything, testCoords.Lat, testCoords.Lon).
		Return(nil, store.ErrUnsupported)

	_, err := f.service.Lookup(context.Background(), testAddress)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLookup_LandAreaBackfilledFromStore(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, mock.Anything).Return(nil, nil)
	f.store.On("PutMarketRecord", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.expectLocate()
	f.geocoder.On("Geographies", mock.Anything, testCoords.Lat, testCoords.Lon).Return(&geocode.Geography{
		StateFIPS:  "06",
		CountyFIPS: "075",
		TractFIPS:  "020600",
		LandAreaM2: 0,
	}, nil)
	f.store.On("TractArea", mock.Anything, "06075020600").Return(int64(486422), nil)
	f.expectSources()

	record, err := f.service.Lookup(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, int64(486422), record.TractAreaSqMeters)
}

func TestLookup_MandatorySourceFailure(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, mock.Anything).Return(nil, nil)
	f.expectLocate()
	f.expectGeographies()
	f.census.On("FetchVariables", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, eris.New("api down"))
	f.census.On("FetchComponents", mock.Anything, mock.Anything, 2023).Return(nil, nil)
	f.census.On("FetchFlows", mock.Anything, mock.Anything, 2022).Return(nil, nil)
	f.walkscore.On("Score", mock.Anything, testAddress, testCoords.Lat, testCoords.Lon).Return(nil, nil)

	_, err := f.service.Lookup(context.Background(), testAddress)
	assert.ErrorIs(t, err, ErrUnavailable)
	f.store.AssertNotCalled(t, "PutMarketRecord")
}

func TestLookup_NoDataForTract(t *testing.T) {
	f := newServiceFixture()

	f.store.On("GetMarketRecord", mock.Anything, mock.Anything).Return(nil, nil)
	f.expectLocate()
	f.expectGeographies()
	// Every source reaches its API; the tract simply has no ACS rows.
	f.census.On("FetchVariables", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)
	f.census.On("FetchComponents", mock.Anything, mock.Anything, 2023).Return(nil, nil)
	f.census.On("FetchFlows", mock.Anything, mock.Anything, 2022).Return(nil, nil)
	f.walkscore.On("Score", mock.Anything, testAddress, testCoords.Lat, testCoords.Lon).Return(nil, nil)

	_, err := f.service.Lookup(context.Background(), testAddress)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefresh_SkipsCacheRead(t *testing.T) {
	f := newServiceFixture()

	f.store.On("PutMarketRecord", mock.Anything, CacheKey(testAddress), mock.Anything).Return(nil)
	f.expectLocate()
	f.expectGeographies()
	f.expectSources()

	record, err := f.service.Refresh(context.Background(), testAddress)
	require.NoError(t, err)
	assert.NotNil(t, record)
	f.store.AssertNotCalled(t, "GetMarketRecord")
	f.store.AssertCalled(t, "PutMarketRecord", mock.Anything, CacheKey(testAddress), mock.Anything)
}
