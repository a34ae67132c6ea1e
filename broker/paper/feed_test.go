package paper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
)

type stepQuotes struct {
	n   atomic.Int32
	bid []float64
}

func (s *stepQuotes) Quotes(ctx context.Context, instruments []string) (map[string]market.Quote, error) {
	i := int(s.n.Add(1)) - 1
	if i >= len(s.bid) {
		i = len(s.bid) - 1
	}
	b := s.bid[i]
	return map[string]market.Quote{"EUR_USD": {Instrument: "EUR_USD", Bid: b, Ask: b + 0.0002}}, nil
}

func TestFollowDrivesQuotesAndBrackets(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	_, err := e.CreateMarketOrder(context.Background(), broker.MarketOrderRequest{
		Instrument: "EUR_USD", Units: 1000, TakeProfit: ptr(1.1050),
	})
	require.NoError(t, err)

	src := &stepQuotes{bid: []float64{1.1010, 1.1030, 1.1060}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Follow(ctx, src, []string{"EUR_USD"}, 5*time.Millisecond, nil) }()

	require.Eventually(t, func() bool {
		pos, _ := e.OpenPositions(context.Background())
		return len(pos) == 0
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)

	trades := e.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, "take_profit", trades[0].CloseReason)
	assert.Equal(t, 1.1060, trades[0].ClosePrice)
}
