package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hubstore/clientcli"
)

var (
	listAll  bool
	listPage string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the objects in your namespace",
	Long: `List the objects in the namespace owned by the configured key.

The hub returns one page at a time. Use --all to follow every page or
--page to resume from a page token printed by a previous call.

Examples:
  hubstore-cli list
  hubstore-cli list --all
  hubstore-cli list --page "YWZ0ZXJ8..."`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "fetch all pages")
	listCmd.Flags().StringVar(&listPage, "page", "", "page token from a previous listing")
}

func runList(_ *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.List(context.Background(), clientcli.ListOptions{Page: listPage, All: listAll})
	if err != nil {
		return reportError(err)
	}

	return getFormatter().FormatList(os.Stdout, result)
}
