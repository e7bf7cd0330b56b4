package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/orchestrator"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/reporting"
	"github.com/PaulShpilsher/router-flood-sub002/pkg/safety"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run a packet flood against a private-range target",
	Long:  `Validates the target and parameters, then drives the worker pool until the configured duration elapses or the run is cancelled.`,
	RunE:  runFlood,
}

func init() {
	runCmd.Flags().String("target-ip", "", "target address, must be private (RFC1918/RFC4193/link-local)")
	runCmd.Flags().IntSlice("ports", nil, "comma-separated destination ports")
	runCmd.Flags().Int("threads", 0, "worker count, 1..100")
	runCmd.Flags().Int("rate", 0, "per-worker packets per second")
	runCmd.Flags().Int("duration", 0, "stop after this many seconds (0 = unbounded)")
	runCmd.Flags().Bool("dry-run", false, "build and count packets, do not send")
	runCmd.Flags().String("interface", "", "transmitting network interface (default: auto-select)")
	runCmd.Flags().String("format", "text", "progress output format (text, json, tui)")
}

func runFlood(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitValidationFailure)
	}

	outputFormat, _ := cmd.Flags().GetString("format")

	logLevel := reporting.LogLevelInfo
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})
	logger.Info("router-flood starting", "version", version, "target", cfg.Target.IP, "dry_run", cfg.Attack.DryRun)

	progress := reporting.NewProgressReporter(reporting.OutputFormat(outputFormat), logger)

	storage, err := reporting.NewStorage(cfg.Export.OutputDir, cfg.Export.KeepLastN, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeError)
	}

	orch := orchestrator.New(cfg, logger, progress, storage)

	ctx := context.Background()
	report, err := orch.Run(ctx)

	if orch.Interrupted() {
		logger.Warn("run interrupted by signal")
		os.Exit(exitInterrupted)
	}

	if err != nil {
		var valErr *safety.ValidationError
		if errors.As(err, &valErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitValidationFailure)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeError)
	}

	logger.Info("run completed", "sent", report.TotalSent, "failed", report.GlobalFailed)
	return nil
}
