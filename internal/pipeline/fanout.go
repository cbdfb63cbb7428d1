package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
	"github.com/sells-group/marketdata/pkg/walkscore"
)

type sourceStatus int

const (
	sourceOK sourceStatus = iota
	sourceSkipped
	sourceFailed
)

// sourceOutcome records how one fan-out task settled. Kept per task so the
// join point can decide escalation after everything has finished.
type sourceOutcome struct {
	name      string
	mandatory bool
	status    sourceStatus
	err       error
}

// fanOutResult carries every source's data for one resolved geography.
// Optional sources that failed or returned nothing leave their field nil.
type fanOutResult struct {
	Demographics  *census.VariableResult
	TractTrend    []model.TrendPoint
	CountyTrend   []model.TrendPoint
	StateTrend    []model.TrendPoint
	NationalTrend []model.TrendPoint
	Components    *census.Components
	Flows         *census.Flows
	Walkability   *walkscore.ScoreResult

	outcomes []sourceOutcome
}

// fanOut issues every source fetch for the geography concurrently and joins
// them all before deciding anything. Mandatory sources (the demographic
// variable set and the tract and county trends) escalate their failure to
// ErrUnavailable; optional sources (components, flows, benchmarks,
// walkability) degrade to nil with a warning. No task cancels its siblings.
func (s *Service) fanOut(ctx context.Context, geo model.Geography, address string, coords model.Coordinates) (*fanOutResult, error) {
	res := &fanOutResult{}
	year := s.cfg.Census.LatestYear

	type task struct {
		name      string
		mandatory bool
		run       func(context.Context) (sourceStatus, error)
	}

	tasks := []task{
		{"demographics", true, func(ctx context.Context) (sourceStatus, error) {
			demo, err := fetchChunked(ctx, s.census, geo, year, model.LevelTract, s.demoCodes)
			if err != nil {
				return sourceFailed, err
			}
			res.Demographics = demo
			if demo == nil {
				return sourceSkipped, nil
			}
			return sourceOK, nil
		}},
		{"tract_trend", true, func(ctx context.Context) (sourceStatus, error) {
			trend, err := fetchTrend(ctx, s.census, geo, model.LevelTract, s.cfg.Census.TrendYears)
			if err != nil {
				return sourceFailed, err
			}
			res.TractTrend = trend
			return sourceOK, nil
		}},
		{"county_trend", true, func(ctx context.Context) (sourceStatus, error) {
			trend, err := fetchTrend(ctx, s.census, geo, model.LevelCounty, s.cfg.Census.TrendYears)
			if err != nil {
				return sourceFailed, err
			}
			res.CountyTrend = trend
			return sourceOK, nil
		}},
		{"state_trend", false, func(ctx context.Context) (sourceStatus, error) {
			trend, err := fetchTrend(ctx, s.census, geo, model.LevelState, s.cfg.Census.TrendYears)
			if err != nil {
				return sourceFailed, err
			}
			res.StateTrend = trend
			return sourceOK, nil
		}},
		{"national_trend", false, func(ctx context.Context) (sourceStatus, error) {
			trend, err := fetchTrend(ctx, s.census, geo, model.LevelNational, s.cfg.Census.TrendYears)
			if err != nil {
				return sourceFailed, err
			}
			res.NationalTrend = trend
			return sourceOK, nil
		}},
		{"components", false, func(ctx context.Context) (sourceStatus, error) {
			comp, err := s.census.FetchComponents(ctx, geo, s.cfg.Census.ComponentsYear)
			if err != nil {
				return sourceFailed, err
			}
			res.Components = comp
			if comp == nil {
				return sourceSkipped, nil
			}
			return sourceOK, nil
		}},
		{"flows", false, func(ctx context.Context) (sourceStatus, error) {
			flows, err := s.census.FetchFlows(ctx, geo, s.cfg.Census.FlowsYear)
			if err != nil {
				return sourceFailed, err
			}
			res.Flows = flows
			if flows == nil {
				return sourceSkipped, nil
			}
			return sourceOK, nil
		}},
		{"walkability", false, func(ctx context.Context) (sourceStatus, error) {
			score, err := s.walkscore.Score(ctx, address, coords.Lat, coords.Lon)
			if err != nil {
				return sourceFailed, err
			}
			res.Walkability = score
			if score == nil {
				return sourceSkipped, nil
			}
			return sourceOK, nil
		}},
	}

	outcomes := make([]sourceOutcome, len(tasks))

	// Plain group: closures never return errors, so no sibling is cancelled
	// and every task settles before the policy below runs.
	g := new(errgroup.Group)
	for i, tk := range tasks {
		g.Go(func() error {
			status, err := tk.run(ctx)
			outcomes[i] = sourceOutcome{name: tk.name, mandatory: tk.mandatory, status: status, err: err}
			return nil
		})
	}
	_ = g.Wait()
	res.outcomes = outcomes

	for _, o := range outcomes {
		if o.status != sourceFailed {
			continue
		}
		if o.mandatory {
			return nil, eris.Wrapf(ErrUnavailable, "pipeline: %s: %v", o.name, o.err)
		}
		zap.L().Warn("pipeline: optional source failed",
			zap.String("source", o.name),
			zap.Error(o.err),
		)
	}
	return res, nil
}
