package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/config"
	"github.com/rustyeddy/fxpilot/risk"
	"github.com/rustyeddy/fxpilot/signals"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Print the current signals once",
	Long: `Read one set of signals for the configured instruments and print them.
With --plan the allocation the controller would submit is printed too;
nothing is ordered.

Example:
  fxpilot signals -f fxpilot.yaml --plan`,
	Args: cobra.NoArgs,
	RunE: runSignals,
}

var (
	signalsConfig string
	signalsPlan   bool
)

func init() {
	rootCmd.AddCommand(signalsCmd)

	signalsCmd.Flags().StringVarP(&signalsConfig, "file", "f", "", "path to config file (required)")
	signalsCmd.Flags().BoolVar(&signalsPlan, "plan", false, "also print the allocation plan")
	signalsCmd.MarkFlagRequired("file")
}

func runSignals(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(signalsConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	live, _, gateway, err := gateways(cfg, log)
	if err != nil {
		return err
	}
	var candles broker.CandleSource
	if live != nil {
		candles = live
	}
	src, err := signalSource(cfg, candles, log)
	if err != nil {
		return err
	}
	return preview(cmd.Context(), cmd.OutOrStdout(), cfg, gateway, src, signalsPlan, log)
}

func preview(ctx context.Context, w io.Writer, cfg *config.Config, b broker.Broker, src signals.Source, withPlan bool, log *zap.Logger) error {
	set, err := src.Signals(ctx, cfg.Instruments)
	if err != nil {
		return fmt.Errorf("signals: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tDIRECTION\tSTRENGTH")
	for _, inst := range cfg.Instruments {
		s := set.Get(inst)
		fmt.Fprintf(tw, "%s\t%s\t%.2f\n", inst, s.Direction, s.Strength)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !withPlan {
		return nil
	}
	if !set.Actionable() {
		fmt.Fprintln(w, "\nNo actionable signals.")
		return nil
	}

	alloc, err := risk.NewAllocator(cfg.Allocation.Params(), log)
	if err != nil {
		return err
	}
	snap := broker.Take(ctx, b, cfg.Instruments, broker.QuotesPart|broker.AccountPart)
	plans, omitted, err := alloc.Allocate(cfg.Instruments, set, snap)
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tDIRECTION\tFRACTION\tPRICE\tSIZE\tSTOP\tTARGET")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.5f\t%.0f\t%.5f\t%.5f\n",
			p.Instrument, p.Direction, p.Fraction, p.Price, p.Size, p.StopPrice, p.TargetPrice)
	}
	for _, o := range omitted {
		fmt.Fprintf(tw, "%s\tomitted: %s\t\t\t\t\t\n", o.Instrument, o.Reason)
	}
	return tw.Flush()
}
