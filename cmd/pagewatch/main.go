package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagewatch/pagewatch/internal/config"
	"github.com/pagewatch/pagewatch/internal/logging"
	"github.com/pagewatch/pagewatch/internal/metrics"
	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/probe"
	"github.com/pagewatch/pagewatch/internal/report"
	"github.com/pagewatch/pagewatch/internal/scheduler"
)

var (
	flagProbeInterval int
	flagPort          int
	flagLogDir        string
)

var rootCmd = &cobra.Command{
	Use:          "pagewatch <requirement-file>",
	Short:        "Monitors remote documents available over HTTP and reports their status",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

var validateCmd = &cobra.Command{
	Use:          "validate <requirement-file>",
	Short:        "Checks a requirement file without starting the watchdog",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runValidate,
}

func init() {
	rootCmd.Flags().IntVar(&flagProbeInterval, "probe-interval", config.DefaultProbeInterval,
		"seconds to wait between probes (overrides the requirement file)")
	rootCmd.Flags().IntVar(&flagPort, "port", config.DefaultPort,
		"port for the report server (overrides the requirement file)")
	rootCmd.Flags().StringVar(&flagLogDir, "log-dir", "logs", "directory for the diagnostic log file")
	rootCmd.AddCommand(validateCmd)
}

func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	overrides := config.Overrides{LogDir: flagLogDir}
	if cmd.Flags().Changed("probe-interval") {
		overrides.ProbeInterval = &flagProbeInterval
	}
	if cmd.Flags().Changed("port") {
		overrides.Port = &flagPort
	}
	return config.Load(path, overrides)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("cannot set up logging: %w", err)
	}
	defer logger.Sync()

	for _, warning := range cfg.Warnings {
		logger.Warn("config_warning", zap.String("warning", warning))
	}

	pages, err := probe.CompilePages(cfg.Pages)
	if err != nil {
		return err
	}

	m := metrics.New()
	engine := probe.NewEngine(logger, probe.NewPageFetcher(logger), probe.NewResolverClassifier(), m, pages)

	errs := make(chan error, 1)
	srv := report.NewServer(logger, engine, m)
	srv.Start(cfg.Port, errs)

	var notifier notify.Notifier
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		notifier = slack
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wd := scheduler.New(logger, engine, cfg.ProbeInterval, notifier, errs)
	if err := wd.Run(ctx); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			logger.Error("report_port_in_use",
				zap.Int("port", cfg.Port),
				zap.String("hint", "the port is held by another server or still in TIME_WAIT; pick a different one or wait"),
			)
		} else {
			logger.Error("watchdog_failed", zap.Error(err))
		}
		return err
	}

	// Interrupt is the expected way of stopping the watchdog: drain the
	// report server and exit cleanly.
	logger.Info("interrupt_received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("report_server_shutdown", zap.Error(err))
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	for _, warning := range cfg.Warnings {
		fmt.Fprintln(os.Stderr, "WARNING:", warning)
	}
	fmt.Printf("OK: %d page(s), probe interval %s, report port %d\n",
		len(cfg.Pages), cfg.ProbeInterval, cfg.Port)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
