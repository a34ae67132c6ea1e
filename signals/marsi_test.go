package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rustyeddy/fxpilot/broker/paper"
	"github.com/rustyeddy/fxpilot/market"
)

// zigzag returns n candles that step up then down, drifting by the
// difference of the two steps.
func zigzag(n int, start, up, down float64) []market.Candle {
	out := make([]market.Candle, 0, n)
	p := start
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if i > 0 {
			if i%2 == 1 {
				p += up
			} else {
				p -= down
			}
		}
		out = append(out, market.Candle{Time: t0.Add(time.Duration(i) * time.Hour), Open: p, High: p, Low: p, Close: p, Complete: true})
	}
	return out
}

func TestDecide(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		r    Reading
		want Direction
	}{
		{"buy", Reading{ShortSMA: 1.11, LongSMA: 1.10, RSI: 60, Price: 1.12, ShortEMA: 1.11}, Buy},
		{"sell on cross", Reading{ShortSMA: 1.09, LongSMA: 1.10, RSI: 40, Price: 1.12, ShortEMA: 1.11}, Sell},
		{"sell on overbought", Reading{ShortSMA: 1.11, LongSMA: 1.10, RSI: 75, Price: 1.12, ShortEMA: 1.11}, Sell},
		{"hold below ema", Reading{ShortSMA: 1.11, LongSMA: 1.10, RSI: 60, Price: 1.10, ShortEMA: 1.11}, Hold},
		{"hold at overbought", Reading{ShortSMA: 1.11, LongSMA: 1.10, RSI: 70, Price: 1.12, ShortEMA: 1.11}, Hold},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Decide(tt.r, 70))
		})
	}
}

func TestMARSISignals(t *testing.T) {
	t.Parallel()
	e := paper.NewEngine("a", "USD", 1000)
	// net +0.0002 every two bars, ending on an up bar
	e.SetCandles("EUR_USD", zigzag(62, 1.1000, 0.0010, 0.0008))
	e.SetCandles("GBP_USD", zigzag(62, 1.3000, -0.0010, -0.0008))
	e.SetCandles("USD_JPY", zigzag(20, 150, 0.1, 0.05))

	m, err := NewMARSI(e, DefaultMARSIConfig(), nil)
	require.NoError(t, err)

	got, err := m.Signals(context.Background(), []string{"EUR_USD", "GBP_USD", "USD_JPY", "AUD_USD"})
	require.NoError(t, err)

	assert.Equal(t, Buy, got["EUR_USD"].Direction)
	assert.Greater(t, got["EUR_USD"].Strength, 0.0)
	assert.Less(t, got["EUR_USD"].Strength, 70.0)
	assert.Equal(t, Sell, got["GBP_USD"].Direction)
	// too few closes, no candles at all
	assert.Equal(t, Unknown, got["USD_JPY"].Direction)
	assert.Equal(t, Unknown, got["AUD_USD"].Direction)
}

func TestMARSISkipsIncompleteCandles(t *testing.T) {
	t.Parallel()
	cs := zigzag(45, 1.1, 0.001, 0.0008)
	cs[len(cs)-1].Complete = false

	e := paper.NewEngine("a", "USD", 1000)
	e.SetCandles("EUR_USD", cs)
	m, err := NewMARSI(e, DefaultMARSIConfig(), nil)
	require.NoError(t, err)

	got, err := m.Signals(context.Background(), []string{"EUR_USD"})
	require.NoError(t, err)
	assert.Equal(t, Unknown, got["EUR_USD"].Direction)
}

type failingCandles struct{}

func (failingCandles) Candles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, errors.New("gateway down")
}

func TestMARSILogsFetchFailure(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	m, err := NewMARSI(failingCandles{}, DefaultMARSIConfig(), zap.New(core))
	require.NoError(t, err)

	got, err := m.Signals(context.Background(), []string{"EUR_USD"})
	require.NoError(t, err)
	assert.Equal(t, Unknown, got["EUR_USD"].Direction)

	entries := logs.FilterField(zap.String("instrument", "EUR_USD")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "signal unavailable", entries[0].Message)
}

func TestMARSIGotiEngine(t *testing.T) {
	t.Parallel()
	cfg := DefaultMARSIConfig()
	cfg.RSIEngine = RSIGoti
	m, err := NewMARSI(failingCandles{}, cfg, nil)
	require.NoError(t, err)

	r, err := m.Read(market.Closes(zigzag(61, 1.1, 0.001, 0.0008)))
	require.NoError(t, err)
	assert.Greater(t, r.RSI, 0.0)
	assert.Less(t, r.RSI, 100.0)
	assert.Greater(t, r.ShortSMA, r.LongSMA)
}

func TestMARSIConfigValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultMARSIConfig().Validate())

	bad := DefaultMARSIConfig()
	bad.ShortPeriod = 50
	assert.Error(t, bad.Validate())

	bad = DefaultMARSIConfig()
	bad.Lookback = 10
	assert.Error(t, bad.Validate())

	bad = DefaultMARSIConfig()
	bad.RSIEngine = "talib"
	assert.Error(t, bad.Validate())
}
