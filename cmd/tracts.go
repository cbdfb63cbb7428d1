package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marketdata/internal/fetch"
	"github.com/sells-group/marketdata/internal/gazetteer"
	"github.com/sells-group/marketdata/internal/tiger"
)

var tractsCmd = &cobra.Command{
	Use:   "tracts",
	Short: "Load census tract reference data into the store",
	Long: `Downloads TIGER/Line TRACT shapefiles and loads tract boundaries into the
store, enabling offline point-in-tract lookups when the Census geocoder's
geography endpoint is down.

By default all 50 states + DC are loaded. Use --states to restrict the load,
--gazetteer to also load national land areas from the Gazetteer file, and
--shapefiles=false to skip boundary geometry entirely.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("tracts"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "tracts: migrate")
		}

		shapes, _ := cmd.Flags().GetBool("shapefiles")
		gaz, _ := cmd.Flags().GetBool("gazetteer")
		statesStr, _ := cmd.Flags().GetString("states")
		year, _ := cmd.Flags().GetInt("year")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		if !shapes && !gaz {
			return eris.New("tracts: nothing to load (both --shapefiles=false and no --gazetteer)")
		}

		if year == 0 {
			year = cfg.Tiger.Year
		}

		// The gazetteer URL is FTP by default, shapefiles are HTTPS; the
		// router serves both.
		fetcher := fetch.NewRouter(fetch.HTTPOptions{})

		log := zap.L().With(zap.String("command", "tracts"))

		if shapes {
			opts := tiger.LoadOptions{
				Year:        year,
				BaseURL:     cfg.Tiger.BaseURL,
				TempDir:     cfg.Tiger.TempDir,
				Concurrency: concurrency,
			}
			if statesStr != "" {
				opts.States = splitAndTrim(statesStr)
			}

			log.Info("loading tract boundaries",
				zap.Int("year", opts.Year),
				zap.Strings("states", opts.States),
			)

			res, err := tiger.Load(ctx, st, fetcher, opts)
			if err != nil {
				return eris.Wrap(err, "tracts: load shapefiles")
			}
			fmt.Printf("loaded %d tracts across %d states\n", res.Tracts, res.States)
		}

		if gaz {
			log.Info("loading gazetteer land areas", zap.String("url", cfg.Gazetteer.URL))

			res, err := gazetteer.Load(ctx, st, fetcher, gazetteer.LoadOptions{
				URL:     cfg.Gazetteer.URL,
				TempDir: cfg.Tiger.TempDir,
			})
			if err != nil {
				return eris.Wrap(err, "tracts: load gazetteer")
			}
			fmt.Printf("loaded land areas for %d tracts\n", res.Tracts)
		}

		return nil
	},
}

func init() {
	tractsCmd.Flags().Bool("shapefiles", true, "load TIGER tract boundary shapefiles")
	tractsCmd.Flags().Bool("gazetteer", false, "also load Gazetteer land areas (national)")
	tractsCmd.Flags().String("states", "", "comma-separated state abbreviations or FIPS codes (default: all 50 + DC)")
	tractsCmd.Flags().Int("year", 0, "TIGER/Line year (default: from config)")
	tractsCmd.Flags().Int("concurrency", 0, "parallel state downloads (default 3)")
	rootCmd.AddCommand(tractsCmd)
}

// splitAndTrim splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
