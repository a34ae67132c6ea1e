package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/fxpilot/market"
)

var (
	ErrNoPrice    = errors.New("no price")
	ErrNoPosition = errors.New("no open position")
	ErrRejected   = errors.New("order rejected")
)

// Broker is the brokerage gateway the controller drives. Every call is a
// blocking remote call that may fail transiently.
type Broker interface {
	Quotes(ctx context.Context, instruments []string) (map[string]market.Quote, error)
	Account(ctx context.Context) (Account, error)
	OpenPositions(ctx context.Context) ([]Position, error)
	CreateMarketOrder(ctx context.Context, req MarketOrderRequest) (OrderFill, error)
	ClosePosition(ctx context.Context, instrument string) ([]CloseFill, error)
	CloseAll(ctx context.Context) ([]CloseFill, error)
}

// CandleSource supplies historical candles to signal sources.
type CandleSource interface {
	Candles(ctx context.Context, instrument, granularity string, count int) ([]market.Candle, error)
}

type Account struct {
	ID           string
	Currency     string
	Balance      float64
	UnrealizedPL float64
	NAV          float64
	MarginUsed   float64
	OpenTrades   int
}

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Position is the broker's net position in one instrument.
type Position struct {
	Instrument   string
	Side         Side
	Units        float64 // signed, negative = short
	AveragePrice float64
	UnrealizedPL float64
}

type MarketOrderRequest struct {
	Instrument string
	Units      float64
	StopLoss   *float64
	TakeProfit *float64
	ClientID   string
}

type OrderFill struct {
	OrderID    string
	TradeID    string
	Instrument string
	Units      float64
	Price      float64
}

// CloseFill describes units closed by a position or trade close.
type CloseFill struct {
	TradeID    string
	Instrument string
	Units      float64
	Price      float64
	RealizedPL float64
}

// RejectError carries the broker's reason for refusing an order.
type RejectError struct {
	Instrument string
	Reason     string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("order for %s rejected: %s", e.Instrument, e.Reason)
}

func (e *RejectError) Unwrap() error { return ErrRejected }

// RejectReason returns the broker-supplied reason when err is a rejection,
// or err's text otherwise.
func RejectReason(err error) string {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return err.Error()
}
