package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
)

var dnsLookupCmd = &cobra.Command{
	Use:   "dns-lookup <host>",
	Short: "Resolve a bootstrap peer hostname (gateway.dns_lookup)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		addrs, err := net.LookupHost(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(ExitError)
		}
		printJSON(addrs)
	},
}
