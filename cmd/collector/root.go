package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"debt-collector/internal/config"
	"debt-collector/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Outbound call dispatch for overdue bills",
	Long: `collector places outbound collection calls for every active instance.

Run "collector serve" for the periodic worker and its HTTP API, or
"collector dial" to run a single cycle from the shell.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Bypass the operating window and log at debug level")
	rootCmd.PersistentFlags().String("env-file", ".env", "Env file to load before reading the environment")
}

// loadConfig reads config for cmd and builds the process logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		slog.Error("config load failed", "err", err)
		return config.Config{}, nil, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Dialer.Debug = true
	}

	log := logger.New(cfg.App.Env, cfg.Dialer.Debug)
	slog.SetDefault(log)
	return cfg, log, nil
}
