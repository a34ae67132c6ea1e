package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/lifecycle"
	"github.com/rustyeddy/fxpilot/pkg/id"
)

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Close every open position",
	Long: `Trigger the kill switch.

By default the request goes to a running fxpilot dashboard, which
interrupts the lifecycle, closes everything and returns to SEEKING_ENTRY.
With --direct the positions are closed straight through the OANDA account
in the config file; use it when no fxpilot process is running.

Examples:
  fxpilot kill --addr http://127.0.0.1:8050
  fxpilot kill --direct -f fxpilot.yaml`,
	Args: cobra.NoArgs,
	RunE: runKill,
}

var (
	killAddr    string
	killDirect  bool
	killConfig  string
	killTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(killCmd)

	killCmd.Flags().StringVar(&killAddr, "addr", "http://127.0.0.1:8050", "dashboard base URL")
	killCmd.Flags().BoolVar(&killDirect, "direct", false, "close through the broker instead of a running dashboard")
	killCmd.Flags().StringVarP(&killConfig, "file", "f", "", "config file (required with --direct)")
	killCmd.Flags().DurationVar(&killTimeout, "timeout", 45*time.Second, "overall deadline")
}

func runKill(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), killTimeout)
	defer cancel()

	var (
		out lifecycle.KillOutcome
		err error
	)
	if killDirect {
		if killConfig == "" {
			return errors.New("--direct needs -f <config>")
		}
		out, err = killDirectly(ctx, killConfig)
	} else {
		out, err = killRemote(ctx, killAddr)
	}
	if err != nil {
		return err
	}
	printKill(cmd.OutOrStdout(), out)
	if !out.OK {
		return fmt.Errorf("kill switch failed: %s", out.Error)
	}
	return nil
}

// killRemote posts to a running dashboard. 200 and 502 both carry an
// outcome; anything else is a transport problem.
func killRemote(ctx context.Context, addr string) (lifecycle.KillOutcome, error) {
	var out lifecycle.KillOutcome
	resp, err := resty.New().R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Post(strings.TrimRight(addr, "/") + "/api/kill")
	if err != nil {
		return out, fmt.Errorf("kill request: %w", err)
	}
	switch resp.StatusCode() {
	case 200, 502:
		return out, nil
	default:
		return out, fmt.Errorf("kill request: %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
	}
}

// killDirectly closes every position on the configured OANDA account and
// journals the attempt.
func killDirectly(ctx context.Context, path string) (lifecycle.KillOutcome, error) {
	cfg, err := loadConfig(path, false)
	if err != nil {
		return lifecycle.KillOutcome{}, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return lifecycle.KillOutcome{}, err
	}
	defer log.Sync()

	live, _, _, err := gateways(cfg, log)
	if err != nil {
		return lifecycle.KillOutcome{}, err
	}
	if live == nil {
		return lifecycle.KillOutcome{}, errors.New("direct kill needs broker.token and broker.account_id")
	}
	timeout, _ := cfg.Broker.CallTimeout()
	return closeAll(ctx, broker.WithTimeout(live, timeout), cfg.Journal.Type, cfg.Journal.Path, log), nil
}

func closeAll(ctx context.Context, b broker.Broker, journalType, journalPath string, log *zap.Logger) lifecycle.KillOutcome {
	fills, err := b.CloseAll(ctx)
	out := lifecycle.KillOutcome{OK: err == nil, Closed: len(fills), Time: time.Now().UTC()}
	for _, f := range fills {
		out.RealizedPL += f.RealizedPL
		log.Info("closed",
			zap.String("instrument", f.Instrument),
			zap.String("trade_id", f.TradeID),
			zap.Float64("price", f.Price),
			zap.Float64("realized_pl", f.RealizedPL))
	}
	if err != nil {
		out.Error = err.Error()
		log.Error("kill switch close failed", zap.String("action", "close_all"), zap.Error(err))
	}

	j, jerr := journal.Open(journalType, journalPath)
	if jerr != nil {
		log.Warn("open journal", zap.Error(jerr))
		return out
	}
	defer j.Close()
	rec := journal.KillRecord{
		ID:         id.NewAt(out.Time),
		Time:       out.Time,
		OK:         out.OK,
		Closed:     out.Closed,
		RealizedPL: out.RealizedPL,
		Error:      out.Error,
	}
	if jerr := j.RecordKill(rec); jerr != nil {
		log.Warn("journal kill", zap.Error(jerr))
	}
	return out
}

func printKill(w io.Writer, out lifecycle.KillOutcome) {
	status := "OK"
	if !out.OK {
		status = "FAILED"
	}
	fmt.Fprintf(w, "Kill switch: %s\n", status)
	fmt.Fprintf(w, "  Closed:      %d\n", out.Closed)
	fmt.Fprintf(w, "  Realized PL: %.2f\n", out.RealizedPL)
	if out.Error != "" {
		fmt.Fprintf(w, "  Error:       %s\n", out.Error)
	}
}
