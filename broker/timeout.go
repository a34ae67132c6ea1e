package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/fxpilot/market"
)

// timeoutBroker bounds every gateway call so a stalled request cannot hold
// up the polling cadence.
type timeoutBroker struct {
	next Broker
	d    time.Duration
}

// WithTimeout wraps b so that each call runs under its own deadline of d.
// A non-positive d returns b unchanged.
func WithTimeout(b Broker, d time.Duration) Broker {
	if d <= 0 {
		return b
	}
	return &timeoutBroker{next: b, d: d}
}

func (t *timeoutBroker) Quotes(ctx context.Context, instruments []string) (map[string]market.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Quotes(ctx, instruments)
}

func (t *timeoutBroker) Account(ctx context.Context) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Account(ctx)
}

func (t *timeoutBroker) OpenPositions(ctx context.Context) ([]Position, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.OpenPositions(ctx)
}

func (t *timeoutBroker) CreateMarketOrder(ctx context.Context, req MarketOrderRequest) (OrderFill, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.CreateMarketOrder(ctx, req)
}

func (t *timeoutBroker) ClosePosition(ctx context.Context, instrument string) ([]CloseFill, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.ClosePosition(ctx, instrument)
}

func (t *timeoutBroker) CloseAll(ctx context.Context) ([]CloseFill, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.CloseAll(ctx)
}
