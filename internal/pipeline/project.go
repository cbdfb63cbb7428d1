package pipeline

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
)

// projectionBase picks the projection's starting population and year: the last
// historical tract point when the trend exists, otherwise the latest-year
// demographic population estimate.
func projectionBase(res *fanOutResult, latestYear int) (*float64, int) {
	if n := len(res.TractTrend); n > 0 {
		last := res.TractTrend[n-1]
		return model.Float(float64(last.Population)), last.Year
	}
	if res.Demographics != nil {
		if pop := res.Demographics.Vars.Value(census.VarTotalPopulation); pop != nil {
			return pop, latestYear
		}
	}
	return nil, latestYear
}

// projectPopulation extrapolates the tract population forward. Tract series
// are too short and noisy to project directly, so the county's mean
// year-over-year growth factor is compounded onto the tract's latest known
// base instead. Each projected year is rounded independently while the
// compounding continues on the unrounded value. Returns an empty slice, never
// an error, when there is not enough history to build a factor.
func projectPopulation(basePop *float64, baseYear int, countyTrend []model.TrendPoint, years int) []model.TrendPoint {
	if basePop == nil || *basePop <= 0 || len(countyTrend) < 2 || years <= 0 {
		zap.L().Debug("pipeline: insufficient history for projection")
		return nil
	}

	var factors []float64
	for i := 1; i < len(countyTrend); i++ {
		prev := countyTrend[i-1].Population
		if prev > 0 {
			factors = append(factors, float64(countyTrend[i].Population)/float64(prev))
		}
	}
	if len(factors) == 0 {
		zap.L().Debug("pipeline: no usable county growth factors")
		return nil
	}

	var sum float64
	for _, f := range factors {
		sum += f
	}
	factor := sum / float64(len(factors))

	projection := make([]model.TrendPoint, 0, years)
	current := *basePop
	for year := baseYear + 1; year <= baseYear+years; year++ {
		current *= factor
		projection = append(projection, model.TrendPoint{
			Year:         year,
			Population:   int(math.Round(current)),
			IsProjection: true,
		})
	}
	return projection
}
