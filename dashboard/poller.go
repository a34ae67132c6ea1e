package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/lifecycle"
	"github.com/rustyeddy/fxpilot/metrics"
)

// Poller samples balance and unrealized P/L into the store's history. It
// runs beside the lifecycle loop and only ever writes history and account
// figures.
type Poller struct {
	b        broker.Broker
	store    *lifecycle.Store
	interval time.Duration
	journal  journal.Journal
	metrics  *metrics.Metrics
	log      *zap.Logger
	// OnSample, when set, is called after each stored sample.
	OnSample func(lifecycle.EquityPoint)
}

func NewPoller(b broker.Broker, store *lifecycle.Store, interval time.Duration, j journal.Journal, m *metrics.Metrics, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if j == nil {
		j = journal.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{b: b, store: store, interval: interval, journal: j, metrics: m, log: log.Named("poller")}
}

// Run samples immediately and then every interval until ctx ends.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		if _, err := p.Sample(ctx); err != nil {
			p.log.Warn("equity sample failed", zap.String("action", "account"), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Sample takes one reading. Unrealized P/L comes from the open positions
// when they can be read, otherwise from the account summary.
func (p *Poller) Sample(ctx context.Context) (lifecycle.EquityPoint, error) {
	snap := broker.Take(ctx, p.b, nil, broker.AccountPart|broker.PositionsPart)
	if !snap.HasAccount {
		return lifecycle.EquityPoint{}, snap.AccountErr
	}
	upl := snap.Account.UnrealizedPL
	if snap.HasPositions {
		upl = snap.UnrealizedPL()
	}
	pt := p.store.AppendEquity(lifecycle.EquityPoint{
		Time:         snap.Time,
		Balance:      snap.Account.Balance,
		UnrealizedPL: upl,
	})
	p.metrics.Equity(pt.Balance, pt.UnrealizedPL)
	if err := p.journal.RecordEquity(journal.EquitySnapshot{
		Time:         pt.Time,
		Balance:      pt.Balance,
		UnrealizedPL: pt.UnrealizedPL,
		Equity:       pt.Equity,
		ReturnPct:    pt.ReturnPct,
	}); err != nil {
		p.log.Warn("journal write failed", zap.String("action", "equity"), zap.Error(err))
	}
	if p.OnSample != nil {
		p.OnSample(pt)
	}
	return pt, nil
}
