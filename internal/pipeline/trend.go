package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
)

// fetchTrend builds a population time series for one geography level, issuing
// one fetch per year concurrently. Years whose fetch failed or came back
// without a population value are dropped; the survivors are sorted ascending.
// It returns an error only when no year produced data and at least one fetch
// failed, which points at the fetch mechanism rather than gaps in the
// published series. An empty trend with no failures is not an error.
func fetchTrend(ctx context.Context, client census.Client, geo model.Geography, level model.GeoLevel, years []int) ([]model.TrendPoint, error) {
	if len(years) == 0 {
		return nil, nil
	}

	points := make([]*model.TrendPoint, len(years))
	errs := make([]error, len(years))

	g := new(errgroup.Group)
	for i, year := range years {
		g.Go(func() error {
			res, err := client.FetchVariables(ctx, geo, year, level, []string{census.VarTotalPopulation})
			if err != nil {
				errs[i] = err
				zap.L().Debug("pipeline: trend year failed",
					zap.String("level", string(level)),
					zap.Int("year", year),
					zap.Error(err),
				)
				return nil
			}
			if res == nil {
				return nil
			}
			pop := res.Vars.Value(census.VarTotalPopulation)
			if pop == nil {
				return nil
			}
			points[i] = &model.TrendPoint{Year: year, Population: int(*pop)}
			return nil
		})
	}
	_ = g.Wait()

	trend := make([]model.TrendPoint, 0, len(years))
	for _, p := range points {
		if p != nil {
			trend = append(trend, *p)
		}
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Year < trend[j].Year })

	if len(trend) == 0 {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}
	return trend, nil
}
