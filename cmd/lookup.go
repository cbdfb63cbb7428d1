package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marketdata/internal/model"
)

var (
	lookupAddress string
	lookupNoCache bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up market data for a single address",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "lookup")
		if err != nil {
			return err
		}
		defer env.Close()

		var record *model.MarketRecord
		if lookupNoCache {
			record, err = env.Service.Refresh(ctx, lookupAddress)
		} else {
			record, err = env.Service.Lookup(ctx, lookupAddress)
		}
		if err != nil {
			return eris.Wrap(err, "lookup")
		}

		zap.L().Info("lookup complete",
			zap.String("address", lookupAddress),
			zap.String("fips", record.FIPS),
			zap.Int("population", record.TotalPopulation),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupAddress, "address", "", "street address to look up (required)")
	lookupCmd.Flags().BoolVar(&lookupNoCache, "no-cache", false, "recompute even when a fresh cached record exists")
	_ = lookupCmd.MarkFlagRequired("address")
	rootCmd.AddCommand(lookupCmd)
}
