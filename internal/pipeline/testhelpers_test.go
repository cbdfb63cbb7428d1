package pipeline

import (
	"github.com/sells-group/marketdata/internal/config"
	"github.com/sells-group/marketdata/internal/model"
)

// testGeography is the resolved tract used across pipeline tests.
func testGeography() model.Geography {
	return model.Geography{
		StateFIPS:  "06",
		CountyFIPS: "075",
		TractFIPS:  "020600",
		Name:       "Census Tract 206",
		CountyName: "San Francisco County",
		StateName:  "California",
		LandAreaM2: 486422,
	}
}

// testConfig returns a config with short, predictable census windows.
func testConfig() *config.Config {
	return &config.Config{
		Census: config.CensusConfig{
			LatestYear:      2023,
			TrendYears:      []int{2021, 2022, 2023},
			ComponentsYear:  2023,
			FlowsYear:       2022,
			ProjectionYears: 3,
		},
		Cache: config.CacheConfig{TTLDays: 30},
	}
}

// trend builds an ascending series from year-population pairs.
func trend(pairs ...[2]int) []model.TrendPoint {
	points := make([]model.TrendPoint, 0, len(pairs))
	for _, p := range pairs {
		points = append(points, model.TrendPoint{Year: p[0], Population: p[1]})
	}
	return points
}
