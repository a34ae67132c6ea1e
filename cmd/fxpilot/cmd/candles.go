package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxpilot/broker/oanda"
	"github.com/rustyeddy/fxpilot/market"
)

var candlesCmd = &cobra.Command{
	Use:   "candles",
	Short: "Download OANDA candles to CSV",
	Long: `Fetch complete mid candles for one instrument and write them as CSV
(time,instrument,open,high,low,close,volume). Use --count for the latest
candles or --from/--to for a range.

Examples:
  fxpilot candles -f fxpilot.yaml -i EUR_USD -g H1 --count 500 -o eurusd.csv
  fxpilot candles -f fxpilot.yaml -i GBP_USD --from 2024-01-01T00:00:00Z --to 2024-02-01T00:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runCandles,
}

var (
	candlesConfig      string
	candlesInstrument  string
	candlesGranularity string
	candlesCount       int
	candlesFrom        string
	candlesTo          string
	candlesOut         string
)

func init() {
	rootCmd.AddCommand(candlesCmd)

	candlesCmd.Flags().StringVarP(&candlesConfig, "file", "f", "", "config file with OANDA credentials (required)")
	candlesCmd.Flags().StringVarP(&candlesInstrument, "instrument", "i", "EUR_USD", "instrument")
	candlesCmd.Flags().StringVarP(&candlesGranularity, "granularity", "g", "H1", "candle granularity, e.g. M15, H1, D")
	candlesCmd.Flags().IntVar(&candlesCount, "count", 0, "latest N candles (max 5000)")
	candlesCmd.Flags().StringVar(&candlesFrom, "from", "", "RFC3339 start time")
	candlesCmd.Flags().StringVar(&candlesTo, "to", "", "RFC3339 end time")
	candlesCmd.Flags().StringVarP(&candlesOut, "output", "o", "-", "output CSV path, - for stdout")
	candlesCmd.MarkFlagRequired("file")
}

func candlesRequest() (oanda.CandlesRequest, error) {
	req := oanda.CandlesRequest{
		Instrument:  candlesInstrument,
		Price:       oanda.MidPrice,
		Granularity: oanda.Granularity(candlesGranularity),
		Count:       candlesCount,
	}
	if _, ok := market.Instruments[candlesInstrument]; !ok {
		return req, fmt.Errorf("unknown instrument: %s", candlesInstrument)
	}
	if candlesCount > 0 {
		return req, nil
	}
	if candlesFrom == "" || candlesTo == "" {
		return req, errors.New("need --count or both --from and --to")
	}
	from, err := time.Parse(time.RFC3339, candlesFrom)
	if err != nil {
		return req, fmt.Errorf("bad --from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, candlesTo)
	if err != nil {
		return req, fmt.Errorf("bad --to: %w", err)
	}
	if !to.After(from) {
		return req, errors.New("--to must be after --from")
	}
	req.From, req.To = &from, &to
	return req, nil
}

func runCandles(cmd *cobra.Command, args []string) error {
	req, err := candlesRequest()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(candlesConfig, false)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	live, _, _, err := gateways(cfg, log)
	if err != nil {
		return err
	}
	if live == nil {
		return errors.New("candles need broker.token and broker.account_id")
	}

	candles, err := live.GetCandles(cmd.Context(), req)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if candlesOut != "-" {
		f, err := os.Create(candlesOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeCandles(w, req.Instrument, candles); err != nil {
		return err
	}
	if candlesOut != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d candles to %s\n", len(candles), candlesOut)
	}
	return nil
}

func writeCandles(w io.Writer, instrument string, candles []market.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "instrument", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	ff := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	for _, c := range candles {
		row := []string{
			c.Time.UTC().Format(time.RFC3339),
			instrument,
			ff(c.Open), ff(c.High), ff(c.Low), ff(c.Close),
			ff(c.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
