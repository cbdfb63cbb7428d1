package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
)

// assembleRecord merges the geography, the fan-out results, and the projection
// into the final record. It fails only when the merged demographic map is
// absent; every other group degrades to nil.
func assembleRecord(address string, geo model.Geography, coords model.Coordinates, dataYear int, res *fanOutResult, projection []model.TrendPoint) (*model.MarketRecord, error) {
	if res.Demographics == nil {
		return nil, eris.Wrap(ErrNotFound, "pipeline: no demographic data for geography")
	}
	vars := res.Demographics.Vars
	trend := res.TractTrend

	name := res.Demographics.Name
	if name == "" {
		name = geo.Name
	}
	if name == "" {
		name = "N/A"
	}

	totalPop := 0
	switch {
	case len(projection) > 0:
		totalPop = projection[len(projection)-1].Population
	case len(trend) > 0:
		totalPop = trend[len(trend)-1].Population
	default:
		if pop := vars.Value(census.VarTotalPopulation); pop != nil {
			totalPop = int(*pop)
		}
	}

	return &model.MarketRecord{
		SearchAddress:     address,
		DataYear:          dataYear,
		GeographyName:     name,
		GeographyLevel:    model.LevelTract,
		FIPS:              geo.TractGEOID(),
		Coordinates:       coords,
		TractAreaSqMeters: geo.LandAreaM2,
		TotalPopulation:   totalPop,
		MedianAge:         vars.Value(census.VarMedianAge),
		Growth:            computeGrowth(trend),
		Migration:         computeMigration(res.Components, res.Flows),
		NaturalIncrease:   computeNaturalIncrease(res.Components),
		PopulationDensity: computeDensity(trend, vars.Value(census.VarTotalPopulation), geo.LandAreaM2),
		AgeDistribution:   computeAgeDistribution(vars),
		SexDistribution:   computeSexDistribution(vars),
		Demographics:      computeDemographics(vars),
		Housing:           computeHousing(vars),
		EconomicContext:   computeEconomicContext(vars),
		Walkability:       walkabilityFrom(res),
		PopulationTrends: model.PopulationTrend{
			Trend:      trend,
			Projection: projection,
			Benchmark:  assembleBenchmarks(geo, res),
		},
	}, nil
}

// assembleBenchmarks builds the comparison series for each fixed level that
// produced a trend. Nil when none did.
func assembleBenchmarks(geo model.Geography, res *fanOutResult) *model.BenchmarkData {
	series := func(name string, trend []model.TrendPoint) *model.BenchmarkSeries {
		if len(trend) == 0 {
			return nil
		}
		return &model.BenchmarkSeries{
			Name:  name,
			Trend: trend,
			CAGR:  computeGrowth(trend).CAGR,
		}
	}

	countyName := geo.CountyName
	if countyName == "" {
		countyName = "County"
	}
	stateName := geo.StateName
	if stateName == "" {
		stateName = "State"
	}

	b := &model.BenchmarkData{
		County:   series(countyName, res.CountyTrend),
		State:    series(stateName, res.StateTrend),
		National: series("United States", res.NationalTrend),
	}
	if b.County == nil && b.State == nil && b.National == nil {
		return nil
	}
	return b
}

func walkabilityFrom(res *fanOutResult) *model.WalkabilityScores {
	if res.Walkability == nil {
		return nil
	}
	return &model.WalkabilityScores{
		WalkScore:          res.Walkability.WalkScore,
		WalkDescription:    res.Walkability.WalkDescription,
		TransitScore:       res.Walkability.TransitScore,
		TransitDescription: res.Walkability.TransitDescription,
	}
}
