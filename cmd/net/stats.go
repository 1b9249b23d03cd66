package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ian-Reitsma/the-block/chain/overlay"
	"github.com/Ian-Reitsma/the-block/chain/types"
)

func openOverlay() (overlay.OverlayService, error) {
	return overlay.NewOverlayService(overlayBackend, overlayDBPath)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Inspect peer statistics (net.peer_stats*)",
}

var statsShowCmd = &cobra.Command{
	Use:   "show <peer-id>",
	Short: "Show one peer's metrics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()

		peer, ok := svc.Peers().Get(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown peer %s\n", args[0])
			os.Exit(ExitUnknownPeer)
		}
		printJSON(peer.Metrics)
	},
}

var statsResetCmd = &cobra.Command{
	Use:   "reset <peer-id>",
	Short: "Reset a peer's accumulated metrics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()

		peer, ok := svc.Peers().Get(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown peer %s\n", args[0])
			os.Exit(ExitUnknownPeer)
		}
		*peer.Metrics = *types.NewPeerMetrics()
		fmt.Printf("reset metrics for %s\n", args[0])
	},
}

var statsReputationCmd = &cobra.Command{
	Use:   "reputation <peer-id>",
	Short: "Show a peer's current reputation score",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()

		peer, ok := svc.Peers().Get(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown peer %s\n", args[0])
			os.Exit(ExitUnknownPeer)
		}
		fmt.Printf("%s: score=%d throttled_until=%d\n", args[0], peer.Metrics.ReputationScore, peer.Metrics.ThrottledUntil)
	},
}

var statsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every known peer's stats as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()
		printJSON(svc.Peers().All())
	},
}

var statsPersistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Force-persist the peer set to disk (inhouse backend only)",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()
		if err := svc.Persist(); err != nil {
			fail(err)
		}
		fmt.Println("persisted")
	},
}

var throttleSeconds int64
var throttleReason string

var statsThrottleCmd = &cobra.Command{
	Use:   "throttle <peer-id>",
	Short: "Throttle a peer for a duration (net.peer_throttle)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()

		peer, ok := svc.Peers().Get(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown peer %s\n", args[0])
			os.Exit(ExitUnknownPeer)
		}
		until := time.Now().Add(time.Duration(throttleSeconds) * time.Second).UnixMilli()
		rep := overlay.NewPeerReputation(peer.Metrics, 0, 1000, 0, 0)
		rep.Throttle(until, throttleReason)
		fmt.Printf("throttled %s until %d (%s)\n", args[0], until, throttleReason)
	},
}

var statsFailuresCmd = &cobra.Command{
	Use:   "failures <peer-id>",
	Short: "Show a peer's handshake failure tally",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()

		peer, ok := svc.Peers().Get(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown peer %s\n", args[0])
			os.Exit(ExitUnknownPeer)
		}
		printJSON(peer.Metrics.HandshakeFail)
	},
}

var watchIntervalSeconds int

var statsWatchCmd = &cobra.Command{
	Use:   "watch <peer-id>",
	Short: "Poll a peer's metrics on an interval until interrupted",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()

		ticker := time.NewTicker(time.Duration(watchIntervalSeconds) * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			peer, ok := svc.Peers().Get(args[0])
			if !ok {
				fmt.Fprintf(os.Stderr, "unknown peer %s\n", args[0])
				os.Exit(ExitUnknownPeer)
			}
			printJSON(peer.Metrics)
		}
	},
}

func init() {
	statsThrottleCmd.Flags().Int64Var(&throttleSeconds, "seconds", 60, "throttle duration in seconds")
	statsThrottleCmd.Flags().StringVar(&throttleReason, "reason", "manual", "throttle reason recorded on the peer")
	statsWatchCmd.Flags().IntVar(&watchIntervalSeconds, "interval", 5, "poll interval in seconds")

	statsCmd.AddCommand(statsShowCmd, statsResetCmd, statsReputationCmd, statsExportCmd,
		statsPersistCmd, statsThrottleCmd, statsFailuresCmd, statsWatchCmd)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(ExitError)
}
