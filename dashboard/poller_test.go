package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/broker/paper"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/lifecycle"
	"github.com/rustyeddy/fxpilot/market"
)

type equityJournal struct {
	journal.Nop
	rows []journal.EquitySnapshot
}

func (e *equityJournal) RecordEquity(s journal.EquitySnapshot) error {
	e.rows = append(e.rows, s)
	return nil
}

func TestPollerSample(t *testing.T) {
	t.Parallel()
	e := paper.NewEngine("p", "USD", 10000)
	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1000, Ask: 1.1002})
	_, err := e.CreateMarketOrder(context.Background(), broker.MarketOrderRequest{Instrument: "EUR_USD", Units: 10000})
	require.NoError(t, err)

	store := lifecycle.NewStore(10)
	j := &equityJournal{}
	p := NewPoller(e, store, time.Second, j, nil, nil)
	var seen []lifecycle.EquityPoint
	p.OnSample = func(pt lifecycle.EquityPoint) { seen = append(seen, pt) }

	first, err := p.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -2.0, first.UnrealizedPL, 1e-6)
	assert.Equal(t, 0.0, first.ReturnPct)

	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1102, Ask: 1.1104})
	second, err := p.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 100.0, second.UnrealizedPL, 1e-6)
	assert.InDelta(t, 102.0/9998.0*100, second.ReturnPct, 1e-6)

	assert.Len(t, store.History(), 2)
	assert.Len(t, j.rows, 2)
	assert.Len(t, seen, 2)
	assert.Equal(t, 10000.0, store.Snapshot().Balance)
}

func TestPollerAccountFailure(t *testing.T) {
	t.Parallel()
	e := paper.NewEngine("p", "USD", 10000)
	e.Fail(paper.OpAccount, errors.New("timeout"))
	store := lifecycle.NewStore(10)
	p := NewPoller(e, store, time.Second, nil, nil, nil)

	_, err := p.Sample(context.Background())
	assert.EqualError(t, err, "timeout")
	assert.Empty(t, store.History())
}

func TestPollerRunStops(t *testing.T) {
	t.Parallel()
	e := paper.NewEngine("p", "USD", 10000)
	store := lifecycle.NewStore(10)
	p := NewPoller(e, store, 10*time.Millisecond, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return len(store.History()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
