package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pr-snapshot/internal/config"
	"pr-snapshot/internal/logging"
	"pr-snapshot/internal/report"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// errReported marks errors that were already logged.
var errReported = errors.New("run failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, out io.Writer) int {
	cmd := newRootCmd(out)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		return exitFailure
	}
	return exitSuccess
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		printConfig bool
		runNow      bool
		schedule    string
	)

	cmd := &cobra.Command{
		Use:           "pr-snapshot",
		Short:         "Post a daily pull-request snapshot to Google Chat",
		Long:          "pr-snapshot collects pull-request activity from GitHub, builds the daily snapshot report and posts it to a Google Chat webhook.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}

			log := logging.New(cfg.DebugMode, cfg.LogFormat)

			if printConfig {
				writeConfig(out, cfg)
				return nil
			}

			if schedule == "" {
				schedule = cfg.Schedule
			}
			if schedule == "" || runNow {
				return runOnce(cmd.Context(), cfg, log)
			}
			return runScheduled(cmd.Context(), cfg, log, schedule)
		},
	}

	cmd.Flags().BoolVar(&printConfig, "print-config", false, "print the non-secret configuration and exit")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run once immediately even when a schedule is configured")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression; stay resident and run on this schedule (default $REPORT_SCHEDULE)")

	return cmd
}

func runOnce(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	runID := uuid.NewString()
	entry := log.WithField("run_id", runID)

	runner, err := report.NewFromConfig(ctx, cfg, runID, entry)
	if err != nil {
		entry.WithError(err).Error("Error loading configuration")
		return errReported
	}
	entry.Debug(runner.Describe())

	if err := runner.Run(ctx); err != nil {
		entry.WithError(err).Error("Error running report")
		return errReported
	}

	entry.Info("PR report sent successfully!")
	return nil
}

func runScheduled(ctx context.Context, cfg *config.Config, log *logrus.Logger, schedule string) error {
	// Fail fast on bad secrets instead of at the first tick.
	if err := cfg.ValidateReport(); err != nil {
		log.WithError(err).Error("Error loading configuration")
		return errReported
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		log.Info("Running scheduled PR report...")
		if err := runOnce(ctx, cfg, log); err != nil {
			log.Warn("Scheduled report failed, waiting for the next run")
		}
	})
	if err != nil {
		log.WithError(err).Errorf("Error setting up scheduler for %q", schedule)
		return errReported
	}

	log.Infof("PR Reporter started. Will run on schedule %q.", schedule)
	log.Info("Press Ctrl+C to stop the application.")

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	log.Info("PR Reporter stopped")
	return nil
}

func writeConfig(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "Configuration:")
	for _, kv := range cfg.Summary() {
		fmt.Fprintf(out, "  %s: %s\n", kv[0], kv[1])
	}
	fmt.Fprintln(out, "(Tokens hidden for security)")
}
