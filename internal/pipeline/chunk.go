package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
)

// chunkCodes splits codes into batches of at most width, preserving order.
// Concatenating the batches reproduces the input.
func chunkCodes(codes []string, width int) [][]string {
	if width <= 0 || len(codes) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(codes)+width-1)/width)
	for start := 0; start < len(codes); start += width {
		end := start + width
		if end > len(codes) {
			end = len(codes)
		}
		chunks = append(chunks, codes[start:end])
	}
	return chunks
}

// fetchChunked fetches a wide variable set in per-call-cap batches and merges
// the results. All chunks must return data: a partially merged map would look
// complete to downstream ratio math, so any absent chunk discards the whole
// result (nil, nil).
func fetchChunked(ctx context.Context, client census.Client, geo model.Geography, year int, level model.GeoLevel, codes []string) (*census.VariableResult, error) {
	chunks := chunkCodes(codes, census.MaxVariablesPerCall)
	if len(chunks) == 0 {
		return nil, nil
	}

	results := make([]*census.VariableResult, len(chunks))
	g, gCtx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			res, err := client.FetchVariables(gCtx, geo, year, level, chunk)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &census.VariableResult{Vars: make(model.VariableMap, len(codes))}
	for _, res := range results {
		if res == nil {
			return nil, nil
		}
		if merged.Name == "" {
			merged.Name = res.Name
		}
		merged.Vars.Merge(res.Vars)
	}
	return merged, nil
}
