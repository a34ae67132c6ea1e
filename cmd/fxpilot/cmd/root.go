package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/config"
	"github.com/rustyeddy/fxpilot/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "fxpilot",
	Short: "Signal-driven FX position lifecycle manager",
	Long: `fxpilot trades a basket of FX instruments on an OANDA account.

It alternates between two phases:
  - SEEKING_ENTRY: read signals, size positions by signal strength, submit
    market orders with stop loss and take profit levels
  - MONITORING:    watch open positions and close them at their exit levels
                   or when the whole account hits its P/L bounds

A read-only dashboard shows equity, P/L and risk statistics and carries a
kill switch that flattens every position.`,
	SilenceUsage: true,
}

var logLevel string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")
}

// newLogger builds the process logger from cfg, honouring --log-level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return logger.New(level, cfg.Log.Encoding)
}
