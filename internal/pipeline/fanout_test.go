package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
	"github.com/sells-group/marketdata/pkg/walkscore"
)

const testAddress = "740 Bryant St, San Francisco, CA 94103"

var testCoords = model.Coordinates{Lat: 37.7749, Lon: -122.4194}

// fanOutFixture wires a Service whose census mock answers every level.
// Individual tests override single sources before calling fanOut.
type fanOutFixture struct {
	service   *Service
	census    *mockCensusClient
	walkscore *mockWalkscoreClient
}

func newFanOutFixture() *fanOutFixture {
	client := &mockCensusClient{}
	ws := &mockWalkscoreClient{}
	return &fanOutFixture{
		service: &Service{
			cfg:       testConfig(),
			census:    client,
			walkscore: ws,
			demoCodes: []string{census.VarMedianAge},
		},
		census:    client,
		walkscore: ws,
	}
}

func (f *fanOutFixture) expectDemographics() {
	f.census.On("FetchVariables", mock.Anything, mock.Anything, 2023, model.LevelTract, []string{census.VarMedianAge}).
		Return(&census.VariableResult{
			Name: "Census Tract 206",
			Vars: model.VariableMap{census.VarMedianAge: model.Float(38.2)},
		}, nil)
}

func (f *fanOutFixture) expectTrend(level model.GeoLevel, pop float64) {
	f.census.On("FetchVariables", mock.Anything, mock.Anything, mock.Anything, level, []string{census.VarTotalPopulation}).
		Return(popResult(pop), nil)
}

func (f *fanOutFixture) expectTrendError(level model.GeoLevel, err error) {
	f.census.On("FetchVariables", mock.Anything, mock.Anything, mock.Anything, level, []string{census.VarTotalPopulation}).
		Return(nil, err)
}

func (f *fanOutFixture) expectComponentsAndFlows() {
	f.census.On("FetchComponents", mock.Anything, mock.Anything, 2023).
		Return(&census.Components{
			Births: model.Int(1200), Deaths: model.Int(800),
			NetMig: model.Int(1500), Population: model.Int(100000),
		}, nil)
	f.census.On("FetchFlows", mock.Anything, mock.Anything, 2022).
		Return(&census.Flows{MovedIn: model.Int(8000), MovedOut: model.Int(6500)}, nil)
}

func (f *fanOutFixture) expectWalkscore() {
	f.walkscore.On("Score", mock.Anything, testAddress, testCoords.Lat, testCoords.Lon).
		Return(&walkscore.ScoreResult{WalkScore: model.Int(88)}, nil)
}

func TestFanOut_AllSourcesSucceed(t *testing.T) {
	f := newFanOutFixture()
	f.expectDemographics()
	f.expectTrend(model.LevelTract, 5000)
	f.expectTrend(model.LevelCounty, 100000)
	f.expectTrend(model.LevelState, 1000000)
	f.expectTrend(model.LevelNational, 330000000)
	f.expectComponentsAndFlows()
	f.expectWalkscore()

	res, err := f.service.fanOut(context.Background(), testGeography(), testAddress, testCoords)
	require.NoError(t, err)
	require.NotNil(t, res.Demographics)
	assert.Equal(t, "Census Tract 206", res.Demographics.Name)
	assert.Len(t, res.TractTrend, 3)
	assert.Len(t, res.CountyTrend, 3)
	assert.Len(t, res.StateTrend, 3)
	assert.Len(t, res.NationalTrend, 3)
	require.NotNil(t, res.Components)
	require.NotNil(t, res.Flows)
	require.NotNil(t, res.Walkability)
	assert.Equal(t, 88, *res.Walkability.WalkScore)
}

func TestFanOut_MandatoryDemographicsFailure(t *testing.T) {
	f := newFanOutFixture()
	f.census.On("FetchVariables", mock.Anything, mock.Anything, 2023, model.LevelTract, []string{census.VarMedianAge}).
		Return(nil, eris.New("acs down"))
	f.expectTrend(model.LevelTract, 5000)
	f.expectTrend(model.LevelCounty, 100000)
	f.expectTrend(model.LevelState, 1000000)
	f.expectTrend(model.LevelNational, 330000000)
	f.expectComponentsAndFlows()
	f.expectWalkscore()

	res, err := f.service.fanOut(context.Background(), testGeography(), testAddress, testCoords)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, res)
}

func TestFanOut_MandatoryCountyTrendFailure(t *testing.T) {
	f := newFanOutFixture()
	f.expectDemographics()
	f.expectTrend(model.LevelTract, 5000)
	f.expectTrendError(model.LevelCounty, eris.New("connection reset"))
	f.expectTrend(model.LevelState, 1000000)
	f.expectTrend(model.LevelNational, 330000000)
	f.expectComponentsAndFlows()
	f.expectWalkscore()

	_, err := f.service.fanOut(context.Background(), testGeography(), testAddress, testCoords)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFanOut_OptionalFailuresDegrade(t *testing.T) {
	f := newFanOutFixture()
	f.expectDemographics()
	f.expectTrend(model.LevelTract, 5000)
	f.expectTrend(model.LevelCounty, 100000)
	f.expectTrendError(model.LevelState, eris.New("state outage"))
	f.expectTrendError(model.LevelNational, eris.New("national outage"))
	f.census.On("FetchComponents", mock.Anything, mock.Anything, 2023).
		Return(nil, eris.New("pep down"))
	f.census.On("FetchFlows", mock.Anything, mock.Anything, 2022).
		Return(nil, eris.New("flows down"))
	f.walkscore.On("Score", mock.Anything, testAddress, testCoords.Lat, testCoords.Lon).
		Return(nil, eris.New("walkscore down"))

	res, err := f.service.fanOut(context.Background(), testGeography(), testAddress, testCoords)
	require.NoError(t, err)
	require.NotNil(t, res.Demographics)
	assert.Len(t, res.TractTrend, 3)
	assert.Len(t, res.CountyTrend, 3)
	assert.Empty(t, res.StateTrend)
	assert.Empty(t, res.NationalTrend)
	assert.Nil(t, res.Components)
	assert.Nil(t, res.Flows)
	assert.Nil(t, res.Walkability)
}

func TestFanOut_AbsentDemographicsIsNotFailure(t *testing.T) {
	// The tract exists but ACS has no rows for it. The fan-out succeeds;
	// assembly decides that absence means not-found.
	f := newFanOutFixture()
	f.census.On("FetchVariables", mock.Anything, mock.Anything, 2023, model.LevelTract, []string{census.VarMedianAge}).
		Return(nil, nil)
	f.expectTrend(model.LevelTract, 5000)
	f.expectTrend(model.LevelCounty, 100000)
	f.expectTrend(model.LevelState, 1000000)
	f.expectTrend(model.LevelNational, 330000000)
	f.expectComponentsAndFlows()
	f.expectWalkscore()

	res, err := f.service.fanOut(context.Background(), testGeography(), testAddress, testCoords)
	require.NoError(t, err)
	assert.Nil(t, res.Demographics)
}

func TestFanOut_UnconfiguredWalkscoreSkips(t *testing.T) {
	f := newFanOutFixture()
	f.expectDemographics()
	f.expectTrend(model.LevelTract, 5000)
	f.expectTrend(model.LevelCounty, 100000)
	f.expectTrend(model.LevelState, 1000000)
	f.expectTrend(model.LevelNational, 330000000)
	f.expectComponentsAndFlows()
	f.walkscore.On("Score", mock.Anything, testAddress, testCoords.Lat, testCoords.Lon).
		Return(nil, nil)

	res, err := f.service.fanOut(context.Background(), testGeography(), testAddress, testCoords)
	require.NoError(t, err)
	assert.Nil(t, res.Walkability)
}
