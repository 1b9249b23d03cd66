package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ian-Reitsma/the-block/chain/overlay"
)

var (
	reputationDecaySeconds int64
	reputationDecayPerMille int64
)

var reputationCmd = &cobra.Command{
	Use:   "reputation",
	Short: "Drive reputation decay across every known peer (net.reputation_sync)",
}

var reputationSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply one decay tick to every peer's reputation score",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()

		now := time.Now().UnixMilli()
		interval := time.Duration(reputationDecaySeconds) * time.Second
		for _, peer := range svc.Peers().All() {
			rep := overlay.NewPeerReputation(peer.Metrics, interval, reputationDecayPerMille, 0, 0)
			rep.MaybeDecay(now)
		}
		fmt.Printf("synced reputation decay across %d peers\n", len(svc.Peers().All()))
	},
}

func init() {
	reputationSyncCmd.Flags().Int64Var(&reputationDecaySeconds, "interval-seconds", 60, "decay interval in seconds")
	reputationSyncCmd.Flags().Int64Var(&reputationDecayPerMille, "decay-per-mille", 990, "peer_reputation_decay, applied as score*decay/1000")
	reputationCmd.AddCommand(reputationSyncCmd)
}
