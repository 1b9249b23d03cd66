package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ian-Reitsma/the-block/chain/crypto"
)

var keyPath string

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the node's network identity key (TB_NET_KEY_PATH)",
}

var keyRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Generate a fresh network key, backing up the previous one (net.key_rotate)",
	Run: func(cmd *cobra.Command, args []string) {
		if keyPath == "" {
			keyPath = os.Getenv("TB_NET_KEY_PATH")
		}
		if keyPath == "" {
			fmt.Fprintln(os.Stderr, "--key-path is required (or set TB_NET_KEY_PATH)")
			os.Exit(ExitError)
		}
		if existing, err := os.ReadFile(keyPath); err == nil {
			backup := fmt.Sprintf("%s.%d.bak", keyPath, time.Now().UnixMilli())
			if err := os.WriteFile(backup, existing, 0o600); err != nil {
				fail(err)
			}
			fmt.Printf("backed up previous key to %s\n", backup)
		}

		pub, priv, err := crypto.GenerateKey()
		if err != nil {
			fail(err)
		}
		keypair := append(append([]byte{}, priv...), pub...)
		if err := os.WriteFile(keyPath, keypair, 0o600); err != nil {
			fail(err)
		}
		fmt.Printf("rotated network key; public key %s\n", hex.EncodeToString(pub))
	},
}

func init() {
	keyRotateCmd.Flags().StringVar(&keyPath, "key-path", "", "path to the network key file")
	keyCmd.AddCommand(keyRotateCmd)
}
