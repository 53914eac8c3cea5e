// Package main is the entry point for the helpdesk server and its
// maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/config"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/logging"
)

var (
	settings = config.New()
	cfg      config.Config
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "helpdesk",
	Short: "Multi-tenant helpdesk API",
	Long: `helpdesk serves the ticket, tracker, messenger, knowledge base and client
communication API. Without a subcommand it runs serve.

Settings come from defaults, an optional YAML file (--config) and environment
variables named after the upper-cased keys (DATABASE_URL, SMTP_HOST, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if err := config.ReadFile(settings, path); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			settings.Set("log_level", level)
		}
		cfg = config.Load(settings)

		built, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		logger = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides log_level)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

