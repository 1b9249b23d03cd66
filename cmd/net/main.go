// Command net is the operator CLI for a running node: peer stats,
// backpressure control, compute-market stats, reputation sync, DNS
// lookups, config reload, and key rotation. Grounded on the teacher's
// cmd/quantum-node/main.go (cobra root command, viper BindPFlags,
// persistent data-dir/port flags) generalized from a single "run the
// node" command into the subcommand tree this operator surface needs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

// Exit codes match the deterministic contract every subcommand honors:
// 0 success, 1 generic error, 2 unknown peer, 3 unauthorized.
const (
	ExitOK             = 0
	ExitError          = 1
	ExitUnknownPeer    = 2
	ExitUnauthorized   = 3
)

var (
	dataDir        string
	overlayBackend string
	overlayDBPath  string
)

var rootCmd = &cobra.Command{
	Use:   "net",
	Short: "Operator CLI for a the-block node's overlay and market state",
	Long:  "net inspects and controls a running node's gossip overlay, compute market, and governance-driven runtime configuration.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "node data directory")
	rootCmd.PersistentFlags().StringVar(&overlayBackend, "overlay-backend", "stub", "overlay backend: inhouse|stub")
	rootCmd.PersistentFlags().StringVar(&overlayDBPath, "overlay-db-path", "", "inhouse overlay peer file path")
	viper.BindPFlags(rootCmd.PersistentFlags())
	viper.BindEnv("overlay-backend", "TB_RUNTIME_BACKEND")
	viper.BindEnv("overlay-db-path", "TB_OVERLAY_DB_PATH")

	// Resolution order is viper's: explicit flag, then TB_* environment,
	// then flag default.
	rootCmd.PersistentPreRun = func(*cobra.Command, []string) {
		overlayBackend = viper.GetString("overlay-backend")
		overlayDBPath = viper.GetString("overlay-db-path")
	}

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(backpressureCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(reputationCmd)
	rootCmd.AddCommand(dnsLookupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(completionsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("net %s (build %s, commit %s)\n", Version, BuildTime, Commit)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}
