package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"debt-collector/internal/dialer"
	"debt-collector/pkg/logger"
)

var dialCmd = &cobra.Command{
	Use:   "dial [INSTANCE_ID]",
	Short: "Run one dispatch cycle and print the reports",
	Long: `dial runs a single cycle for every active instance, or for one
instance when INSTANCE_ID is given, and prints the cycle reports as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDial,
}

func init() {
	rootCmd.AddCommand(dialCmd)
}

func runDial(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx = logger.With(ctx, log)

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Error("dialer init failed", "err", err)
		return err
	}
	defer a.Close()

	var reports []dialer.CycleReport
	if len(args) == 1 {
		inst, err := a.stores.instances.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("load instance %s: %w", args[0], err)
		}
		rep, err := a.engine.RunCycle(ctx, inst)
		reports = append(reports, rep)
		if err != nil {
			printReports(cmd, reports)
			return err
		}
	} else {
		reports, err = a.worker.RunOnce(ctx)
		if err != nil {
			return err
		}
	}
	printReports(cmd, reports)
	return nil
}

func printReports(cmd *cobra.Command, reports []dialer.CycleReport) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(reports)
}
