package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hubstore/config"
	"github.com/sagarc03/hubstore/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the proof tables",
	Long: `Create the proof table and its indexes if they do not exist, then
validate the schema. This is needed when database.auto_migrate is off,
for example when several hubs share one postgres database.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	db, err := database.Open(cmd.Context(), cfg.Database, true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	slog.Info("migration complete", "type", cfg.Database.Type, "table", cfg.Database.Tables.Proofs)
	return nil
}
