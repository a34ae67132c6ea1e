// Package paper is an in-memory brokerage gateway. Orders fill at the current
// quote (longs on the ask, shorts on the bid), attached exit levels trigger on
// quote updates and realized P/L is booked into the balance.
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/pkg/id"
)

// Op names a gateway call for fault injection.
type Op string

const (
	OpQuotes        Op = "quotes"
	OpAccount       Op = "account"
	OpPositions     Op = "positions"
	OpOrder         Op = "order"
	OpClosePosition Op = "close_position"
	OpCloseAll      Op = "close_all"
)

type Engine struct {
	mu      sync.Mutex
	acct    broker.Account
	quotes  *market.QuoteStore
	trades  map[string]*Trade
	candles map[string][]market.Candle
	faults  map[Op]error
	rejects map[string]string
	calls   map[Op]int
}

var (
	_ broker.Broker       = (*Engine)(nil)
	_ broker.CandleSource = (*Engine)(nil)
)

func NewEngine(accountID, currency string, balance float64) *Engine {
	return &Engine{
		acct: broker.Account{
			ID:       accountID,
			Currency: currency,
			Balance:  balance,
			NAV:      balance,
		},
		quotes:  market.NewQuoteStore(),
		trades:  make(map[string]*Trade),
		candles: make(map[string][]market.Candle),
		faults:  make(map[Op]error),
		rejects: make(map[string]string),
		calls:   make(map[Op]int),
	}
}

// Fail makes every subsequent call of op return err; a nil err clears it.
func (e *Engine) Fail(op Op, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.faults, op)
		return
	}
	e.faults[op] = err
}

// Reject makes orders for instrument fail with reason; "" clears it.
func (e *Engine) Reject(instrument, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if reason == "" {
		delete(e.rejects, instrument)
		return
	}
	e.rejects[instrument] = reason
}

// Calls reports how many times op was invoked.
func (e *Engine) Calls(op Op) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

func (e *Engine) enter(op Op) error {
	e.calls[op]++
	return e.faults[op]
}

// SetCandles installs the history served by Candles.
func (e *Engine) SetCandles(instrument string, candles []market.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candles[instrument] = candles
}

func (e *Engine) Candles(ctx context.Context, instrument, granularity string, count int) ([]market.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.candles[instrument]
	if !ok {
		return nil, fmt.Errorf("paper: no candles for %s", instrument)
	}
	if count > 0 && len(cs) > count {
		cs = cs[len(cs)-count:]
	}
	out := make([]market.Candle, len(cs))
	copy(out, cs)
	return out, nil
}

// SetQuote publishes a new quote and fires any exit levels it crosses.
// It returns the fills of trades closed by those levels.
func (e *Engine) SetQuote(q market.Quote) []broker.CloseFill {
	e.mu.Lock()
	defer e.mu.Unlock()

	if q.Time.IsZero() {
		q.Time = time.Now().UTC()
	}
	e.quotes.Set(q)

	var fills []broker.CloseFill
	for _, t := range e.sortedTrades() {
		if !t.Open || t.Instrument != q.Instrument {
			continue
		}
		mark := q.Bid
		if t.Units < 0 {
			mark = q.Ask
		}
		reason := ""
		switch {
		case hitStopLoss(t, mark):
			reason = "stop_loss"
		case hitTakeProfit(t, mark):
			reason = "take_profit"
		}
		if reason != "" {
			fills = append(fills, e.closeTradeLocked(t, mark, q.Time, reason))
		}
	}
	return fills
}

func (e *Engine) Quotes(ctx context.Context, instruments []string) (map[string]market.Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpQuotes); err != nil {
		return nil, err
	}
	out := make(map[string]market.Quote, len(instruments))
	for _, inst := range instruments {
		if q, err := e.quotes.Get(inst); err == nil {
			out[inst] = q
		}
	}
	return out, nil
}

func (e *Engine) Account(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpAccount); err != nil {
		return broker.Account{}, err
	}
	acct := e.acct
	acct.UnrealizedPL = 0
	acct.OpenTrades = 0
	for _, t := range e.trades {
		if !t.Open {
			continue
		}
		acct.OpenTrades++
		if pl, ok := e.markLocked(t); ok {
			acct.UnrealizedPL += pl
		}
	}
	acct.NAV = acct.Balance + acct.UnrealizedPL
	return acct, nil
}

func (e *Engine) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpPositions); err != nil {
		return nil, err
	}

	byInst := map[string]*broker.Position{}
	cost := map[string]float64{}
	for _, t := range e.sortedTrades() {
		if !t.Open {
			continue
		}
		p, ok := byInst[t.Instrument]
		if !ok {
			p = &broker.Position{Instrument: t.Instrument}
			byInst[t.Instrument] = p
		}
		p.Units += t.Units
		cost[t.Instrument] += t.Units * t.EntryPrice
		if pl, ok := e.markLocked(t); ok {
			p.UnrealizedPL += pl
		}
	}

	out := make([]broker.Position, 0, len(byInst))
	for inst, p := range byInst {
		if p.Units == 0 {
			continue
		}
		p.AveragePrice = cost[inst] / p.Units
		p.Side = broker.Long
		if p.Units < 0 {
			p.Side = broker.Short
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out, nil
}

func (e *Engine) CreateMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpOrder); err != nil {
		return broker.OrderFill{}, err
	}
	if reason, ok := e.rejects[req.Instrument]; ok {
		return broker.OrderFill{}, &broker.RejectError{Instrument: req.Instrument, Reason: reason}
	}
	if req.Units == 0 {
		return broker.OrderFill{}, &broker.RejectError{Instrument: req.Instrument, Reason: "UNITS_INVALID"}
	}
	q, err := e.quotes.Get(req.Instrument)
	if err != nil {
		return broker.OrderFill{}, fmt.Errorf("paper: %s: %w", req.Instrument, broker.ErrNoPrice)
	}

	fillPrice := q.Ask
	if req.Units < 0 {
		fillPrice = q.Bid
	}

	tradeID := id.New()
	e.trades[tradeID] = &Trade{
		ID:         tradeID,
		Instrument: req.Instrument,
		Units:      req.Units,
		EntryPrice: fillPrice,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenTime:   q.Time,
		Open:       true,
	}

	return broker.OrderFill{
		OrderID:    tradeID,
		TradeID:    tradeID,
		Instrument: req.Instrument,
		Units:      req.Units,
		Price:      fillPrice,
	}, nil
}

// ClosePosition closes every open trade in instrument at the current quote.
func (e *Engine) ClosePosition(ctx context.Context, instrument string) ([]broker.CloseFill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpClosePosition); err != nil {
		return nil, err
	}

	var fills []broker.CloseFill
	for _, t := range e.sortedTrades() {
		if !t.Open || t.Instrument != instrument {
			continue
		}
		fill, err := e.closeAtMarketLocked(t, "close_position")
		if err != nil {
			return fills, err
		}
		fills = append(fills, fill)
	}
	if len(fills) == 0 {
		return nil, fmt.Errorf("paper: %s: %w", instrument, broker.ErrNoPosition)
	}
	return fills, nil
}

// CloseAll closes every open trade. Trades that cannot be priced stay open
// and are reported in the aggregated error.
func (e *Engine) CloseAll(ctx context.Context) ([]broker.CloseFill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpCloseAll); err != nil {
		return nil, err
	}

	var (
		fills []broker.CloseFill
		errs  error
	)
	for _, t := range e.sortedTrades() {
		if !t.Open {
			continue
		}
		fill, err := e.closeAtMarketLocked(t, "close_all")
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fills = append(fills, fill)
	}
	return fills, errs
}

// Trades returns copies of all trades, open and closed, oldest first.
func (e *Engine) Trades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Trade, 0, len(e.trades))
	for _, t := range e.sortedTrades() {
		out = append(out, *t)
	}
	return out
}

func (e *Engine) closeAtMarketLocked(t *Trade, reason string) (broker.CloseFill, error) {
	q, err := e.quotes.Get(t.Instrument)
	if err != nil {
		return broker.CloseFill{}, fmt.Errorf("paper: close %s: %w", t.ID, broker.ErrNoPrice)
	}
	closePrice := q.Bid
	if t.Units < 0 {
		closePrice = q.Ask
	}
	closeTime := q.Time
	if closeTime.IsZero() {
		closeTime = time.Now().UTC()
	}
	return e.closeTradeLocked(t, closePrice, closeTime, reason), nil
}

func (e *Engine) closeTradeLocked(t *Trade, closePrice float64, closeTime time.Time, reason string) broker.CloseFill {
	rate, err := market.QuoteToAccountRate(t.Instrument, e.acct.Currency, e.quotes)
	if err != nil {
		rate = 1.0
	}
	pl := unrealizedPL(t, closePrice, rate)

	t.ClosePrice = closePrice
	t.CloseTime = closeTime
	t.RealizedPL = pl
	t.CloseReason = reason
	t.Open = false

	e.acct.Balance += pl

	return broker.CloseFill{
		TradeID:    t.ID,
		Instrument: t.Instrument,
		Units:      t.Units,
		Price:      closePrice,
		RealizedPL: pl,
	}
}

func (e *Engine) markLocked(t *Trade) (float64, bool) {
	q, err := e.quotes.Get(t.Instrument)
	if err != nil {
		return 0, false
	}
	mark := q.Bid
	if t.Units < 0 {
		mark = q.Ask
	}
	rate, err := market.QuoteToAccountRate(t.Instrument, e.acct.Currency, e.quotes)
	if err != nil {
		rate = 1.0
	}
	return unrealizedPL(t, mark, rate), true
}

// sortedTrades orders by ID; ULIDs sort by creation time.
func (e *Engine) sortedTrades() []*Trade {
	out := make([]*Trade, 0, len(e.trades))
	for _, t := range e.trades {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
