package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if status, _ := cmd.Flags().GetBool("status"); status {
			db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			pending, err := store.PendingMigrations(cmd.Context(), db, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			for _, version := range pending {
				fmt.Fprintln(cmd.OutOrStdout(), "pending", version)
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			}
			return nil
		}
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("database is up to date")
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("status", false, "list pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}
