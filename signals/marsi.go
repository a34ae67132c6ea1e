package signals

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/indicators"
	"github.com/rustyeddy/fxpilot/market"
)

// RSI engines for MARSIConfig.RSIEngine.
const (
	RSISimple = "simple"
	RSIGoti   = "goti"
)

type MARSIConfig struct {
	Granularity string
	Lookback    int
	ShortPeriod int
	LongPeriod  int
	RSIPeriod   int
	Overbought  float64
	RSIEngine   string
}

// DefaultMARSIConfig is H1 mid candles, SMA 10/45, EMA 10 and RSI 10.
func DefaultMARSIConfig() MARSIConfig {
	return MARSIConfig{
		Granularity: "H1",
		Lookback:    200,
		ShortPeriod: 10,
		LongPeriod:  45,
		RSIPeriod:   10,
		Overbought:  70,
		RSIEngine:   RSISimple,
	}
}

func (c MARSIConfig) Validate() error {
	if c.ShortPeriod <= 0 || c.LongPeriod <= 0 || c.RSIPeriod <= 0 {
		return fmt.Errorf("periods must be positive (short=%d long=%d rsi=%d)", c.ShortPeriod, c.LongPeriod, c.RSIPeriod)
	}
	if c.ShortPeriod >= c.LongPeriod {
		return fmt.Errorf("short period %d must be below long period %d", c.ShortPeriod, c.LongPeriod)
	}
	if c.Lookback < c.MinCloses() {
		return fmt.Errorf("lookback %d below the %d closes required", c.Lookback, c.MinCloses())
	}
	if c.Overbought <= 0 || c.Overbought >= 100 {
		return fmt.Errorf("overbought must be in (0,100), got %v", c.Overbought)
	}
	switch strings.ToLower(c.RSIEngine) {
	case "", RSISimple, RSIGoti:
	default:
		return fmt.Errorf("unknown rsi engine %q (want simple|goti)", c.RSIEngine)
	}
	return nil
}

// MinCloses is the fewest complete closes an evaluation needs.
func (c MARSIConfig) MinCloses() int {
	return max(c.LongPeriod, c.RSIPeriod+1)
}

// Reading holds the values behind one MARSI decision.
type Reading struct {
	ShortSMA float64
	LongSMA  float64
	ShortEMA float64
	RSI      float64
	Price    float64
}

// Decide applies the moving-average/RSI rule:
// BUY when the short SMA is above the long SMA, RSI is below overbought and
// price is above the short EMA; SELL when the short SMA is below the long
// SMA or RSI is above overbought; HOLD otherwise.
func Decide(r Reading, overbought float64) Direction {
	switch {
	case r.ShortSMA > r.LongSMA && r.RSI < overbought && r.Price > r.ShortEMA:
		return Buy
	case r.ShortSMA < r.LongSMA || r.RSI > overbought:
		return Sell
	default:
		return Hold
	}
}

// MARSI derives signals from moving averages and RSI of recent candles.
type MARSI struct {
	cfg     MARSIConfig
	candles broker.CandleSource
	log     *zap.Logger
}

var _ Source = (*MARSI)(nil)

func NewMARSI(candles broker.CandleSource, cfg MARSIConfig, log *zap.Logger) (*MARSI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MARSI{cfg: cfg, candles: candles, log: log.Named("signals")}, nil
}

func (m *MARSI) Signals(ctx context.Context, instruments []string) (Set, error) {
	out := make(Set, len(instruments))
	for _, inst := range instruments {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		sig, r, err := m.signal(ctx, inst)
		if err != nil {
			m.log.Warn("signal unavailable",
				zap.String("instrument", inst),
				zap.String("action", "signal"),
				zap.Error(err))
			out[inst] = Signal{Instrument: inst, Direction: Unknown}
			continue
		}
		m.log.Debug("signal",
			zap.String("instrument", inst),
			zap.String("direction", sig.Direction.String()),
			zap.Float64("short_sma", r.ShortSMA),
			zap.Float64("long_sma", r.LongSMA),
			zap.Float64("short_ema", r.ShortEMA),
			zap.Float64("rsi", r.RSI),
			zap.Float64("price", r.Price))
		out[inst] = sig
	}
	return out, nil
}

func (m *MARSI) signal(ctx context.Context, inst string) (Signal, Reading, error) {
	cs, err := m.candles.Candles(ctx, inst, m.cfg.Granularity, m.cfg.Lookback)
	if err != nil {
		return Signal{}, Reading{}, fmt.Errorf("candles: %w", err)
	}
	complete := cs[:0:0]
	for _, c := range cs {
		if c.Complete {
			complete = append(complete, c)
		}
	}
	closes := market.Closes(complete)
	if len(closes) < m.cfg.MinCloses() {
		return Signal{}, Reading{}, fmt.Errorf("%d complete closes, need %d: %w",
			len(closes), m.cfg.MinCloses(), indicators.ErrNotEnoughData)
	}

	r, err := m.Read(closes)
	if err != nil {
		return Signal{}, Reading{}, err
	}
	return Signal{Instrument: inst, Direction: Decide(r, m.cfg.Overbought), Strength: r.RSI}, r, nil
}

// Read computes the indicator values for closes, oldest first.
func (m *MARSI) Read(closes []float64) (Reading, error) {
	var (
		r   Reading
		err error
	)
	if r.ShortSMA, err = indicators.SMA(closes, m.cfg.ShortPeriod); err != nil {
		return r, err
	}
	if r.LongSMA, err = indicators.SMA(closes, m.cfg.LongPeriod); err != nil {
		return r, err
	}
	if r.ShortEMA, err = indicators.EMA(closes, m.cfg.ShortPeriod); err != nil {
		return r, err
	}
	if strings.EqualFold(m.cfg.RSIEngine, RSIGoti) {
		r.RSI, err = indicators.SuiteRSI(closes, m.cfg.Overbought, 100-m.cfg.Overbought)
	} else {
		r.RSI, err = indicators.RSI(closes, m.cfg.RSIPeriod)
	}
	if err != nil {
		return r, err
	}
	r.Price = closes[len(closes)-1]
	return r, nil
}
