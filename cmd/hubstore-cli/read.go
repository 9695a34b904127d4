package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hubstore/clientcli"
)

var (
	readAddress string
	readOutput  string
	readStdout  bool
)

var readCmd = &cobra.Command{
	Use:   "read <remote-path> [local-path]",
	Short: "Read an object from a namespace",
	Long: `Read an object through the hub's public read endpoint.

Reads need no key when --address names the namespace. Without --address
the configured key's own namespace is used.

Examples:
  hubstore-cli read path/file.txt
  hubstore-cli read path/file.txt ./local-file.txt
  hubstore-cli read --address QmW4nsXQFRqVVuFzkHfFaxxUkM9soTNQQEsD7qXpFLLJGa profile.json --stdout | jq .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVarP(&readAddress, "address", "a", "", "namespace to read from (default: own address)")
	readCmd.Flags().StringVarP(&readOutput, "output", "o", "", "output file path")
	readCmd.Flags().BoolVar(&readStdout, "stdout", false, "write to stdout")
}

func runRead(_ *cobra.Command, args []string) error {
	opts := clientcli.ReadOptions{
		Address:    readAddress,
		RemotePath: args[0],
	}
	if len(args) > 1 {
		opts.LocalPath = args[1]
	}
	if readOutput != "" {
		opts.LocalPath = readOutput
	}
	if readStdout {
		opts.LocalPath = "-"
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := client.Read(context.Background(), opts)
	if err != nil {
		return reportError(err)
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		if _, err := io.Copy(os.Stdout, reader); err != nil {
			return err
		}
		// Metadata goes to stderr so it does not mix with the content.
		if jsonOutput {
			return getFormatter().FormatRead(os.Stderr, result)
		}
		return nil
	}

	return getFormatter().FormatRead(os.Stdout, result)
}
