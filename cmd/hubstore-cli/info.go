package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the hub's challenge text and read URL prefix",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func runInfo(_ *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	info, err := client.HubInfo(context.Background())
	if err != nil {
		return reportError(err)
	}

	return getFormatter().FormatHubInfo(os.Stdout, info)
}
