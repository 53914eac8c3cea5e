package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mailbridgeCmd = &cobra.Command{
	Use:   "mailbridge",
	Short: "Run only the IMAP poller",
	Long: `mailbridge polls the support mailbox and files unseen messages into
communication threads. With --once it runs a single cycle and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.IMAPConfigured() {
			return errors.New("imap_host, imap_username and imap_password are required")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w, err := buildWiring(ctx)
		if err != nil {
			return err
		}
		defer w.close()
		poller := w.newPoller()

		once, _ := cmd.Flags().GetBool("once")
		if !once {
			return poller.Run(ctx)
		}
		stats, err := poller.PollOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("mail poll finished",
			zap.Int("fetched", stats.Fetched),
			zap.Int("processed", stats.Processed),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
		return nil
	},
}

func init() {
	mailbridgeCmd.Flags().Bool("once", false, "run a single poll cycle and exit")

	rootCmd.AddCommand(mailbridgeCmd)
}
