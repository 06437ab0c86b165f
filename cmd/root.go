// Package cmd implements the waplink command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waplink",
		Short: "WhatsApp connection lifecycle and chat sync service",
		Long: `waplink manages WhatsApp provider connections (Evolution or Codechat
engines): pairing, lifecycle state, chat synchronization and message sending.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default waplink.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(connectCmd())
	cmd.AddCommand(connectionsCmd())
	cmd.AddCommand(syncCmd())
	cmd.AddCommand(qrCmd())
	cmd.AddCommand(sendCmd())
	return cmd
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("WAPLINK_CONFIG"); env != "" {
		return env
	}
	return "waplink.yaml"
}
