package broker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/broker/paper"
	"github.com/rustyeddy/fxpilot/market"
)

func seeded(t *testing.T) *paper.Engine {
	t.Helper()
	e := paper.NewEngine("acct", "USD", 10000)
	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1000, Ask: 1.1002})
	e.SetQuote(market.Quote{Instrument: "USD_JPY", Bid: 150.00, Ask: 150.03})
	return e
}

func TestTakeEntrySnapshot(t *testing.T) {
	t.Parallel()
	e := seeded(t)

	snap := broker.Take(context.Background(), e, []string{"EUR_USD", "GBP_USD"}, broker.QuotesPart|broker.AccountPart)

	p, ok := snap.Price("EUR_USD")
	assert.True(t, ok)
	assert.Equal(t, 1.1000, p)

	_, ok = snap.Price("GBP_USD")
	assert.False(t, ok)

	bal, ok := snap.Balance()
	assert.True(t, ok)
	assert.Equal(t, 10000.0, bal)
	assert.False(t, snap.HasPositions)
}

func TestTakeRecordsPartialFailures(t *testing.T) {
	t.Parallel()
	e := seeded(t)
	e.Fail(paper.OpAccount, errors.New("timeout"))

	snap := broker.Take(context.Background(), e, []string{"EUR_USD"}, broker.QuotesPart|broker.AccountPart)
	_, ok := snap.Balance()
	assert.False(t, ok)
	assert.Error(t, snap.AccountErr)
	_, ok = snap.Price("EUR_USD")
	assert.True(t, ok)
}

func TestTakePositionsQuotesTheirInstruments(t *testing.T) {
	t.Parallel()
	e := seeded(t)
	ctx := context.Background()
	_, err := e.CreateMarketOrder(ctx, broker.MarketOrderRequest{Instrument: "USD_JPY", Units: -100})
	require.NoError(t, err)

	snap := broker.Take(ctx, e, nil, broker.PositionsPart|broker.QuotesPart)
	require.True(t, snap.HasPositions)
	require.Len(t, snap.Positions, 1)

	mark, ok := snap.Mark(snap.Positions[0])
	assert.True(t, ok)
	assert.Equal(t, 150.03, mark)
}

type slowBroker struct {
	broker.Broker
}

func (slowBroker) Account(ctx context.Context) (broker.Account, error) {
	<-ctx.Done()
	return broker.Account{}, ctx.Err()
}

func TestWithTimeoutBoundsCalls(t *testing.T) {
	t.Parallel()

	b := broker.WithTimeout(slowBroker{}, 20*time.Millisecond)
	start := time.Now()
	_, err := b.Account(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	e := seeded(t)
	assert.Same(t, e, broker.WithTimeout(e, 0))
}

func TestRejectReason(t *testing.T) {
	t.Parallel()

	err := &broker.RejectError{Instrument: "EUR_USD", Reason: "INSUFFICIENT_MARGIN"}
	assert.ErrorIs(t, err, broker.ErrRejected)
	assert.Equal(t, "INSUFFICIENT_MARGIN", broker.RejectReason(err))
	assert.Equal(t, "boom", broker.RejectReason(errors.New("boom")))
}
