package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/fxpilot/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the position lifecycle from a config file",
	Long: `Run the lifecycle controller, the equity poller and the dashboard until
interrupted.

With broker.kind "paper" (or --paper) orders fill against a local book.
The book is priced from OANDA when a token is configured and from
broker.paper.quotes otherwise.

Example:
  fxpilot run -f fxpilot.yaml
  fxpilot run -f fxpilot.yaml --paper`,
	RunE: runRun,
}

var (
	runConfigPath string
	runPaper      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().BoolVar(&runPaper, "paper", false, "fill orders on the paper book regardless of broker.kind")
	runCmd.MarkFlagRequired("file")
}

// loadConfig reads path and applies --paper.
func loadConfig(path string, forcePaper bool) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if forcePaper && cfg.Broker.Kind != "paper" {
		cfg.Broker.Kind = "paper"
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath, runPaper)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := build(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close journal", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("fxpilot starting",
		zap.String("broker", cfg.Broker.Kind),
		zap.String("environment", cfg.Broker.Environment),
		zap.Strings("instruments", cfg.Instruments),
		zap.String("signals", cfg.Signals.Kind),
		zap.String("exit_mode", cfg.Lifecycle.ExitMode),
		zap.Bool("dashboard", cfg.Dashboard.Enabled))

	return a.run(ctx)
}

// run blocks until ctx ends or a component fails.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.controller.Run(ctx) })
	g.Go(func() error { return a.poller.Run(ctx) })
	g.Go(func() error { return a.feed(ctx) })
	if a.cfg.Dashboard.Enabled {
		g.Go(func() error { return a.server.ListenAndServe(ctx, a.cfg.Dashboard.Addr) })
	}
	err := g.Wait()
	a.log.Info("fxpilot stopped", zap.Error(err))
	return err
}
