package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marketdata/internal/fetch"
	"github.com/sells-group/marketdata/internal/model"
	"github.com/sells-group/marketdata/internal/report"
)

var (
	batchInput       string
	batchOutput      string
	batchFormat      string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Look up market data for a CSV of addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		addrs, err := readAddresses(ctx, batchInput)
		if err != nil {
			return err
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		results := processBatch(ctx, addrs, concurrency, env.Service.Lookup)
		return writeResults(results, batchOutput, batchFormat)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "CSV file with an address column (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "output path (xlsx default report.xlsx; json default stdout)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "xlsx", "output format: xlsx or json")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel lookups (default from config)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// readAddresses streams the input CSV and collects the address column.
// The header must name an "address" column; blank cells are skipped.
func readAddresses(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetch.StreamCSV(ctx, f, fetch.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	col := -1
	var addrs []string
	for row := range rowCh {
		if col < 0 {
			header := <-headerCh
			for i, name := range header {
				if strings.EqualFold(strings.TrimSpace(name), "address") {
					col = i
					break
				}
			}
			if col < 0 {
				for range rowCh {
				}
				return nil, eris.Errorf("batch: no address column in %s", path)
			}
		}
		if col < len(row) && row[col] != "" {
			addrs = append(addrs, row[col])
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, eris.Errorf("batch: no addresses in %s", path)
	}
	return addrs, nil
}

// lookupFunc is the callback signature for running one address lookup.
type lookupFunc func(ctx context.Context, address string) (*model.MarketRecord, error)

// processBatch runs lookups concurrently. Individual failures land in the
// result set as error rows; they never abort the batch.
func processBatch(ctx context.Context, addrs []string, concurrency int, lookup lookupFunc) []report.Result {
	zap.L().Info("processing batch",
		zap.Int("addresses", len(addrs)),
		zap.Int("concurrency", concurrency),
	)

	results := make([]report.Result, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	for i, addr := range addrs {
		g.Go(func() error {
			rec, err := lookup(gctx, addr)
			if err != nil {
				failed.Add(1)
				zap.L().Error("lookup failed", zap.String("address", addr), zap.Error(err))
				results[i] = report.Result{Address: addr, Err: err}
				return nil
			}
			succeeded.Add(1)
			results[i] = report.Result{Address: addr, Record: rec}
			return nil
		})
	}
	_ = g.Wait() // workers swallow their own errors

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}

// writeResults renders the batch report in the requested format.
func writeResults(results []report.Result, output, format string) error {
	switch format {
	case "xlsx":
		if output == "" {
			output = "report.xlsx"
		}
		if err := report.WriteXLSX(results, output); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", output)
		return nil
	case "json":
		if output == "" || output == "-" {
			return report.WriteJSON(results, os.Stdout)
		}
		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "batch: create %s", output)
		}
		defer f.Close() //nolint:errcheck
		return report.WriteJSON(results, f)
	default:
		return eris.Errorf("batch: unknown format %q", format)
	}
}
