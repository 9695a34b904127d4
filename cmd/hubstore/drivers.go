package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hubstore/driver"
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List the storage drivers compiled into this binary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeDrivers(cmd.OutOrStdout(), driver.Backends())
	},
}

func init() {
	rootCmd.AddCommand(driversCmd)
}

func writeDrivers(w io.Writer, backends []driver.Backend) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, b := range backends {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", b.Name, b.Description)
	}
	return tw.Flush()
}
