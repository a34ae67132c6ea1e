package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/broker/paper"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/risk"
	"github.com/rustyeddy/fxpilot/signals"
)

type paramsTable struct {
	mu sync.Mutex
	m  map[string]risk.TradeParams
}

func (p *paramsTable) Open(tp risk.TradeParams) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = map[string]risk.TradeParams{}
	}
	p.m[tp.Instrument] = tp
}

type memJournal struct {
	journal.Nop
	orders []journal.OrderRecord
}

func (m *memJournal) RecordOrder(o journal.OrderRecord) error {
	m.orders = append(m.orders, o)
	return nil
}

func newEngine() *paper.Engine {
	e := paper.NewEngine("p", "USD", 10000)
	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1000, Ask: 1.1002})
	e.SetQuote(market.Quote{Instrument: "GBP_USD", Bid: 1.2500, Ask: 1.2503})
	e.SetQuote(market.Quote{Instrument: "USD_JPY", Bid: 150.00, Ask: 150.02})
	return e
}

func buy(inst string, price, size float64) risk.Plan {
	return risk.Plan{
		Instrument:  inst,
		Direction:   signals.Buy,
		Price:       price,
		StopPrice:   market.RoundPrice(inst, price*0.99),
		TargetPrice: market.RoundPrice(inst, price*1.01),
		Size:        size,
	}
}

func TestSubmitIndependentOutcomes(t *testing.T) {
	t.Parallel()
	e := newEngine()
	e.Reject("GBP_USD", "INSUFFICIENT_MARGIN")
	params := &paramsTable{}
	j := &memJournal{}
	s := NewSubmitter(e, params, Options{Journal: j})

	res := s.Submit(context.Background(), []risk.Plan{
		buy("EUR_USD", 1.1, 1000),
		buy("GBP_USD", 1.25, 500),
		buy("USD_JPY", 150, 10),
	})

	require.Len(t, res.Outcomes, 3)
	assert.True(t, res.Outcomes[0].Accepted)
	assert.False(t, res.Outcomes[1].Accepted)
	assert.Equal(t, "INSUFFICIENT_MARGIN", res.Outcomes[1].Reason)
	assert.True(t, res.Outcomes[2].Accepted)
	assert.Equal(t, 2, res.Accepted())
	assert.Equal(t, 1, res.Rejected())

	assert.Len(t, params.m, 2)
	assert.Contains(t, params.m, "EUR_USD")
	assert.NotContains(t, params.m, "GBP_USD")
	assert.Equal(t, 1.089, params.m["EUR_USD"].StopPrice)
	assert.Equal(t, 1.1002, params.m["EUR_USD"].EntryPrice)

	require.Len(t, j.orders, 3)
	assert.True(t, j.orders[0].Accepted)
	assert.Len(t, j.orders[0].ClientID, 36)
	assert.Equal(t, "INSUFFICIENT_MARGIN", j.orders[1].Reason)
}

func TestSubmitAttachesExitLevels(t *testing.T) {
	t.Parallel()
	e := newEngine()
	s := NewSubmitter(e, &paramsTable{}, Options{})

	res := s.Submit(context.Background(), []risk.Plan{buy("EUR_USD", 1.1, 1000)})
	require.Equal(t, 1, res.Accepted())

	trades := e.Trades()
	require.Len(t, trades, 1)
	require.NotNil(t, trades[0].StopLoss)
	assert.Equal(t, 1.089, *trades[0].StopLoss)
	assert.Equal(t, 1.111, *trades[0].TakeProfit)
}

func TestSubmitZeroSizeRejectedLocally(t *testing.T) {
	t.Parallel()
	e := newEngine()
	params := &paramsTable{}
	s := NewSubmitter(e, params, Options{Settle: time.Hour})

	start := time.Now()
	res := s.Submit(context.Background(), []risk.Plan{buy("GBP_USD", 1.25, 0)})

	require.Len(t, res.Outcomes, 1)
	assert.False(t, res.Outcomes[0].Accepted)
	assert.Equal(t, "zero units", res.Outcomes[0].Reason)
	assert.Equal(t, 0, e.Calls(paper.OpOrder))
	assert.Empty(t, params.m)
	assert.Less(t, time.Since(start), time.Second, "no settle pause without an acceptance")
}

func TestSubmitSettlePauseHonoursContext(t *testing.T) {
	t.Parallel()
	e := newEngine()
	s := NewSubmitter(e, &paramsTable{}, Options{Settle: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	res := s.Submit(ctx, []risk.Plan{buy("EUR_USD", 1.1, 100)})
	assert.Equal(t, 1, res.Accepted())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSubmitSettlePauseOncePerBatch(t *testing.T) {
	t.Parallel()
	e := newEngine()
	s := NewSubmitter(e, &paramsTable{}, Options{Settle: 30 * time.Millisecond})

	start := time.Now()
	res := s.Submit(context.Background(), []risk.Plan{buy("EUR_USD", 1.1, 100), buy("USD_JPY", 150, 10)})
	elapsed := time.Since(start)
	assert.Equal(t, 2, res.Accepted())
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 60*time.Millisecond*10)
}

func TestSubmitCancelledContext(t *testing.T) {
	t.Parallel()
	e := newEngine()
	params := &paramsTable{}
	s := NewSubmitter(e, params, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := s.Submit(ctx, []risk.Plan{buy("EUR_USD", 1.1, 100)})
	assert.Equal(t, 0, res.Accepted())
	assert.Equal(t, context.Canceled.Error(), res.Outcomes[0].Reason)
	assert.Equal(t, 0, e.Calls(paper.OpOrder))
}

func TestSubmitTransportFailure(t *testing.T) {
	t.Parallel()
	e := newEngine()
	e.Fail(paper.OpOrder, context.DeadlineExceeded)
	params := &paramsTable{}
	s := NewSubmitter(broker.WithTimeout(e, time.Second), params, Options{})

	res := s.Submit(context.Background(), []risk.Plan{buy("EUR_USD", 1.1, 100)})
	assert.Equal(t, 0, res.Accepted())
	assert.Equal(t, context.DeadlineExceeded.Error(), res.Outcomes[0].Reason)
	assert.Empty(t, params.m)
}
