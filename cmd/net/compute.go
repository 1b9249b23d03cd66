package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Ian-Reitsma/the-block/chain/compute"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Inspect the compute market (compute_market.scheduler_stats)",
}

var computeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print current compute-market scheduler statistics",
	Run: func(cmd *cobra.Command, args []string) {
		market := compute.NewMarket(func() float64 { return float64(time.Now().UnixMilli()) / 1000 })
		printJSON(market.GetMarketStats())
	},
}

func init() {
	computeCmd.AddCommand(computeStatsCmd)
}
