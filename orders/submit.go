// Package orders sends allocation plans to the broker one by one.
package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/metrics"
	"github.com/rustyeddy/fxpilot/risk"
)

// ParamsWriter records the exit levels of an accepted order.
type ParamsWriter interface {
	Open(p risk.TradeParams)
}

// Outcome is the result for one plan.
type Outcome struct {
	Instrument string           `json:"instrument"`
	Accepted   bool             `json:"accepted"`
	Reason     string           `json:"reason,omitempty"`
	Plan       risk.Plan        `json:"plan"`
	Fill       broker.OrderFill `json:"fill"`
}

type Result struct {
	Outcomes []Outcome `json:"outcomes"`
}

func (r Result) Accepted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Accepted {
			n++
		}
	}
	return n
}

func (r Result) Rejected() int {
	return len(r.Outcomes) - r.Accepted()
}

type Options struct {
	// Settle is the pause after a batch with at least one acceptance.
	Settle  time.Duration
	Journal journal.Journal
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type Submitter struct {
	b       broker.Broker
	params  ParamsWriter
	settle  time.Duration
	journal journal.Journal
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewSubmitter(b broker.Broker, params ParamsWriter, opts Options) *Submitter {
	s := &Submitter{
		b:       b,
		params:  params,
		settle:  opts.Settle,
		journal: opts.Journal,
		metrics: opts.Metrics,
		log:     opts.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if s.journal == nil {
		s.journal = journal.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("orders")
	return s
}

// Submit places one market order per plan. Plans are independent: a
// rejection never stops or undoes the others. When ctx ends mid-batch the
// remaining plans are reported rejected without reaching the broker.
func (s *Submitter) Submit(ctx context.Context, plans []risk.Plan) Result {
	res := Result{Outcomes: make([]Outcome, 0, len(plans))}
	for _, p := range plans {
		res.Outcomes = append(res.Outcomes, s.submitOne(ctx, p))
	}
	if res.Accepted() > 0 {
		s.pause(ctx)
	}
	return res
}

func (s *Submitter) submitOne(ctx context.Context, p risk.Plan) Outcome {
	out := Outcome{Instrument: p.Instrument, Plan: p}
	rec := journal.OrderRecord{
		Time:        s.now(),
		Instrument:  p.Instrument,
		Direction:   p.Direction.String(),
		Units:       p.Size,
		Price:       p.Price,
		StopPrice:   p.StopPrice,
		TargetPrice: p.TargetPrice,
	}

	violations := risk.Check(p)
	switch {
	case ctx.Err() != nil:
		out.Reason = ctx.Err().Error()
	case len(violations) > 0:
		out.Reason = violations[0].Msg
	default:
		rec.ClientID = uuid.NewString()
		stop, target := p.StopPrice, p.TargetPrice
		fill, err := s.b.CreateMarketOrder(ctx, broker.MarketOrderRequest{
			Instrument: p.Instrument,
			Units:      p.Size,
			StopLoss:   &stop,
			TakeProfit: &target,
			ClientID:   rec.ClientID,
		})
		if err != nil {
			out.Reason = broker.RejectReason(err)
			break
		}
		out.Accepted = true
		out.Fill = fill
		rec.FillPrice = fill.Price
		rec.TradeID = fill.TradeID
		s.params.Open(p.TradeParams(fill.Price, fill.TradeID, rec.Time))
	}

	rec.Accepted = out.Accepted
	rec.Reason = out.Reason
	s.metrics.Order(out.Accepted)
	if err := s.journal.RecordOrder(rec); err != nil {
		s.log.Warn("journal write failed", zap.String("instrument", p.Instrument), zap.Error(err))
	}

	if out.Accepted {
		s.log.Info("order accepted",
			zap.String("instrument", p.Instrument),
			zap.Float64("units", p.Size),
			zap.Float64("stop", p.StopPrice),
			zap.Float64("target", p.TargetPrice),
			zap.Float64("rr", risk.RR(out.Fill.Price, p.StopPrice, p.TargetPrice)),
			zap.Float64("risk_quote_ccy", risk.PlannedRisk(p.Size, out.Fill.Price, p.StopPrice, 1)),
			zap.String("trade_id", out.Fill.TradeID))
	} else {
		s.log.Warn("order rejected",
			zap.String("instrument", p.Instrument),
			zap.String("action", "submit"),
			zap.Float64("units", p.Size),
			zap.String("reason", out.Reason))
	}
	return out
}

// pause waits for the settle delay or until ctx is done.
func (s *Submitter) pause(ctx context.Context) {
	if s.settle <= 0 {
		return
	}
	t := time.NewTimer(s.settle)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
