package paper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/market"
)

// QuoteSource quotes instruments; a live gateway satisfies it.
type QuoteSource interface {
	Quotes(ctx context.Context, instruments []string) (map[string]market.Quote, error)
}

// Follow copies quotes from src into e immediately and then every interval
// until ctx ends. Exit levels crossed by a new quote fire as with SetQuote.
func (e *Engine) Follow(ctx context.Context, src QuoteSource, instruments []string, every time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("paper")
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		qs, err := src.Quotes(ctx, instruments)
		if err != nil && ctx.Err() == nil {
			log.Warn("quote feed failed", zap.String("action", "quotes"), zap.Error(err))
		}
		for _, q := range qs {
			for _, f := range e.SetQuote(q) {
				log.Info("paper exit level hit",
					zap.String("instrument", f.Instrument),
					zap.String("trade_id", f.TradeID),
					zap.Float64("price", f.Price),
					zap.Float64("realized_pl", f.RealizedPL))
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
