package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Operate on the node's configuration",
}

var configReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-read configuration and the overlay peer file from disk",
	Run: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				fail(err)
			}
		}

		svc, err := openOverlay()
		if err != nil {
			fail(err)
		}
		defer svc.Close()
		fmt.Printf("reloaded config; overlay now tracks %d peers\n", len(svc.Peers().All()))
	},
}

func init() {
	configReloadCmd.Flags().StringVar(&configFile, "config", "", "config file to re-read")
	configCmd.AddCommand(configReloadCmd)
}
