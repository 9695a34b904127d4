package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hubstore/config"

	_ "github.com/sagarc03/hubstore/driver/disk"
	_ "github.com/sagarc03/hubstore/driver/memory"
	_ "github.com/sagarc03/hubstore/driver/pebble"
	_ "github.com/sagarc03/hubstore/driver/s3"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "hubstore",
	Short:   "Storage hub with signed-token write authorization",
	Long: `Hubstore is a storage hub. Each namespace is owned by the key pair
its address is derived from, and writes carry a token signed by that key.
Objects are stored through a pluggable driver (disk, pebble, s3, memory).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths, later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "proof database type: sqlite, postgres (env: HUBSTORE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "proof database connection string (env: HUBSTORE_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("driver", "", "storage driver: disk, pebble, s3, memory (env: HUBSTORE_DRIVER_TYPE)")
	rootCmd.PersistentFlags().String("disk-path", "", "disk driver storage directory (env: HUBSTORE_DRIVER_DISK_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: HUBSTORE_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
