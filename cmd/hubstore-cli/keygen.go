package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hubstore/clientcli"
)

var keygenType string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key",
	Long: `Generate a new signing key and print its address and private key.

The address is the namespace the key can write to. Keep the private key
secret; store it with 'configure add' or pass it with --key.

Examples:
  hubstore-cli keygen
  hubstore-cli keygen --type dilithium3 --json`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenType, "type", "t", "ed25519", "key type: ed25519 or dilithium3")
}

func runKeygen(_ *cobra.Command, _ []string) error {
	key, err := clientcli.GenerateKey(keygenType)
	if err != nil {
		return reportError(err)
	}
	return getFormatter().FormatKey(os.Stdout, key)
}
