package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/broker/paper"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/risk"
)

type memJournal struct {
	journal.Nop
	closes []journal.CloseRecord
}

func (m *memJournal) RecordClose(c journal.CloseRecord) error {
	m.closes = append(m.closes, c)
	return nil
}

// openBook opens unbracketed paper trades so that only the monitor closes them.
func openBook(t *testing.T) (*paper.Engine, map[string]risk.TradeParams) {
	t.Helper()
	e := paper.NewEngine("p", "USD", 10000)
	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1000, Ask: 1.1002})
	e.SetQuote(market.Quote{Instrument: "GBP_USD", Bid: 1.2500, Ask: 1.2502})
	ctx := context.Background()
	_, err := e.CreateMarketOrder(ctx, broker.MarketOrderRequest{Instrument: "EUR_USD", Units: 10000})
	require.NoError(t, err)
	_, err = e.CreateMarketOrder(ctx, broker.MarketOrderRequest{Instrument: "GBP_USD", Units: -5000})
	require.NoError(t, err)
	params := map[string]risk.TradeParams{
		"EUR_USD": {Instrument: "EUR_USD", StopPrice: 1.0900, TargetPrice: 1.1100, Size: 10000},
		"GBP_USD": {Instrument: "GBP_USD", StopPrice: 1.2625, TargetPrice: 1.2375, Size: -5000},
	}
	return e, params
}

func snapshot(e *paper.Engine) broker.Snapshot {
	return broker.Take(context.Background(), e, nil, broker.QuotesPart|broker.PositionsPart)
}

func TestCheckBracketClosesOnlyCrossed(t *testing.T) {
	t.Parallel()
	e, params := openBook(t)
	j := &memJournal{}
	m, err := New(e, Options{Mode: Bracket, Journal: j})
	require.NoError(t, err)

	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1105, Ask: 1.1107})
	rep, err := m.Check(context.Background(), snapshot(e), params)
	require.NoError(t, err)

	assert.Equal(t, []string{"EUR_USD"}, rep.Closed)
	assert.Empty(t, rep.Failed)
	require.Len(t, j.closes, 1)
	assert.Equal(t, ReasonTakeProfit, j.closes[0].Reason)
	assert.Equal(t, 1.1105, j.closes[0].ExitPrice)
	assert.Equal(t, 1.1100, j.closes[0].TargetPrice)

	pos, err := e.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, "GBP_USD", pos[0].Instrument)
}

func TestCheckBracketRecordsFailures(t *testing.T) {
	t.Parallel()
	e, params := openBook(t)
	m, err := New(e, Options{})
	require.NoError(t, err)

	e.SetQuote(market.Quote{Instrument: "GBP_USD", Bid: 1.2628, Ask: 1.2630})
	e.Fail(paper.OpClosePosition, errors.New("timeout"))
	rep, err := m.Check(context.Background(), snapshot(e), params)
	require.NoError(t, err)
	assert.Empty(t, rep.Closed)
	assert.Equal(t, map[string]string{"GBP_USD": "timeout"}, rep.Failed)
}

func TestCheckBracketAlreadyClosed(t *testing.T) {
	t.Parallel()
	e, params := openBook(t)
	m, err := New(e, Options{})
	require.NoError(t, err)

	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.0890, Ask: 1.0892})
	snap := snapshot(e)
	_, err = e.ClosePosition(context.Background(), "EUR_USD")
	require.NoError(t, err)

	rep, err := m.Check(context.Background(), snap, params)
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR_USD"}, rep.Closed)
	assert.Empty(t, rep.Failed)
}

func TestCheckAccountClosesEverything(t *testing.T) {
	t.Parallel()
	e, params := openBook(t)
	j := &memJournal{}
	m, err := New(e, Options{Mode: AccountMode, Account: DefaultAccountExit(), Journal: j})
	require.NoError(t, err)

	// EUR long +8, GBP short -1: total +7 crosses the 3.75 target.
	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1010, Ask: 1.1012})
	rep, err := m.Check(context.Background(), snapshot(e), params)
	require.NoError(t, err)

	assert.True(t, rep.Bulk)
	assert.Equal(t, ReasonAccountTarget, rep.BulkReason)
	assert.InDelta(t, 7.0, rep.TotalPL, 1e-6)
	assert.Equal(t, []string{"EUR_USD", "GBP_USD"}, rep.Closed)
	assert.Empty(t, rep.Evaluation.Close, "account mode never evaluates brackets")
	assert.Len(t, j.closes, 2)

	pos, err := e.OpenPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pos)
}

func TestCheckAccountWithinBounds(t *testing.T) {
	t.Parallel()
	e, params := openBook(t)
	m, err := New(e, Options{Mode: AccountMode, Account: DefaultAccountExit()})
	require.NoError(t, err)

	// Far beyond the EUR target, but account mode ignores per-instrument levels.
	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1002, Ask: 1.1004})
	rep, err := m.Check(context.Background(), snapshot(e), params)
	require.NoError(t, err)
	assert.False(t, rep.Bulk)
	assert.Empty(t, rep.Closed)
	assert.Equal(t, 0, e.Calls(paper.OpCloseAll))
}

func TestCheckWithoutPositions(t *testing.T) {
	t.Parallel()
	e, params := openBook(t)
	m, err := New(e, Options{})
	require.NoError(t, err)

	boom := errors.New("boom")
	rep, err := m.Check(context.Background(), broker.Snapshot{PositionsErr: boom}, params)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, rep.Closed)
	assert.Equal(t, 0, e.Calls(paper.OpClosePosition))
}

func TestNewValidatesMode(t *testing.T) {
	t.Parallel()
	_, err := New(nil, Options{Mode: "mixed"})
	assert.Error(t, err)
	_, err = New(nil, Options{Mode: AccountMode})
	assert.Error(t, err)
}

func TestRecordStale(t *testing.T) {
	t.Parallel()
	j := &memJournal{}
	m, err := New(nil, Options{Journal: j})
	require.NoError(t, err)
	params := map[string]risk.TradeParams{"EUR_USD": {Instrument: "EUR_USD", TradeID: "7", Size: 100, StopPrice: 1.09}}
	m.RecordStale([]string{"EUR_USD"}, params)
	require.Len(t, j.closes, 1)
	assert.Equal(t, ReasonBrokerBracket, j.closes[0].Reason)
	assert.Equal(t, "7", j.closes[0].TradeID)
	assert.Equal(t, 1.09, j.closes[0].StopPrice)
}
