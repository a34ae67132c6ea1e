package risk

import (
	"time"

	"github.com/rustyeddy/fxpilot/signals"
)

// TradeParams are the exit levels that apply to a live position. They are
// recorded when the order is accepted and are the only source the monitor
// uses to decide a per-instrument exit.
type TradeParams struct {
	Instrument  string            `json:"instrument"`
	Direction   signals.Direction `json:"direction"`
	StopPrice   float64           `json:"stop_price"`
	TargetPrice float64           `json:"target_price"`
	Size        float64           `json:"size"`
	EntryPrice  float64           `json:"entry_price"`
	TradeID     string            `json:"trade_id,omitempty"`
	OpenedAt    time.Time         `json:"opened_at"`
}

// Long reports whether the recorded size is a long position.
func (t TradeParams) Long() bool { return t.Size > 0 }

// TradeParams turns an executed plan into its exit record. A zero
// entryPrice falls back to the plan's reference price.
func (p Plan) TradeParams(entryPrice float64, tradeID string, at time.Time) TradeParams {
	if entryPrice == 0 {
		entryPrice = p.Price
	}
	return TradeParams{
		Instrument:  p.Instrument,
		Direction:   p.Direction,
		StopPrice:   p.StopPrice,
		TargetPrice: p.TargetPrice,
		Size:        p.Size,
		EntryPrice:  entryPrice,
		TradeID:     tradeID,
		OpenedAt:    at,
	}
}
