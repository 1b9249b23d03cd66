package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var backpressureCmd = &cobra.Command{
	Use:   "backpressure",
	Short: "Control per-peer rate-limit state (net.backpressure_clear)",
}

var backpressureClearCmd = &cobra.Command{
	Use:   "clear <peer-id>",
	Short: "Check that a peer is known; this process holds no token buckets, so no rate-limit state is reset",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()

		if _, ok := svc.Peers().Get(args[0]); !ok {
			fmt.Fprintf(os.Stderr, "unknown peer %s\n", args[0])
			os.Exit(ExitUnknownPeer)
		}
		fmt.Printf("peer %s is known; no backpressure state is held by this process\n", args[0])
	},
}

func init() {
	backpressureCmd.AddCommand(backpressureClearCmd)
}
