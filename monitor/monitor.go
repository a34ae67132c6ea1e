package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/metrics"
	"github.com/rustyeddy/fxpilot/risk"
)

type Options struct {
	Mode    ExitMode
	Account AccountExit
	Journal journal.Journal
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Monitor runs one exit pass per monitoring cycle.
type Monitor struct {
	b       broker.Broker
	mode    ExitMode
	account AccountExit
	journal journal.Journal
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(b broker.Broker, opts Options) (*Monitor, error) {
	mode, err := ParseExitMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	if mode == AccountMode {
		if err := opts.Account.Validate(); err != nil {
			return nil, err
		}
	}
	m := &Monitor{
		b:       b,
		mode:    mode,
		account: opts.Account,
		journal: opts.Journal,
		metrics: opts.Metrics,
		log:     opts.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if m.journal == nil {
		m.journal = journal.Nop{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.Named("monitor")
	return m, nil
}

func (m *Monitor) Mode() ExitMode { return m.mode }

// Report is what one pass decided and did.
type Report struct {
	Mode       ExitMode   `json:"mode"`
	Evaluation Evaluation `json:"evaluation"`
	// Bulk is set when the account bounds triggered a close of everything.
	Bulk       bool    `json:"bulk"`
	BulkReason string  `json:"bulk_reason,omitempty"`
	TotalPL    float64 `json:"total_pl"`
	// Closed lists the instruments the broker confirmed closed.
	Closed []string          `json:"closed"`
	Failed map[string]string `json:"failed,omitempty"`
}

// Check evaluates the positions in snap against params and closes what the
// configured mode selects. snap must carry positions and quotes from one read.
func (m *Monitor) Check(ctx context.Context, snap broker.Snapshot, params map[string]risk.TradeParams) (Report, error) {
	rep := Report{Mode: m.mode, TotalPL: snap.UnrealizedPL()}
	if !snap.HasPositions {
		return rep, fmt.Errorf("positions unavailable: %w", snap.PositionsErr)
	}

	switch m.mode {
	case AccountMode:
		reason, hit := EvaluateAccount(rep.TotalPL, m.account)
		if !hit {
			return rep, nil
		}
		rep.Bulk, rep.BulkReason = true, reason
		m.log.Info("account bound crossed",
			zap.String("reason", reason),
			zap.Float64("total_pl", rep.TotalPL))
		fills, err := m.b.CloseAll(ctx)
		rep.Closed = m.recordFills(fills, params, reason)
		if err != nil {
			rep.Failed = map[string]string{"*": err.Error()}
			m.log.Error("close all failed", zap.String("action", "close_all"), zap.Error(err))
		}
		return rep, nil

	default:
		rep.Evaluation = EvaluateBrackets(snap.Positions, params, snap)
		for _, inst := range rep.Evaluation.Untracked {
			m.log.Debug("position without exit levels left alone", zap.String("instrument", inst))
		}
		for _, inst := range rep.Evaluation.Unpriced {
			m.log.Warn("no mark for position", zap.String("instrument", inst), zap.String("action", "evaluate"))
		}
		for _, ex := range rep.Evaluation.Close {
			fills, err := m.b.ClosePosition(ctx, ex.Instrument)
			if errors.Is(err, broker.ErrNoPosition) {
				m.log.Info("position already closed", zap.String("instrument", ex.Instrument))
				rep.Closed = append(rep.Closed, m.recordFills([]broker.CloseFill{{Instrument: ex.Instrument, Price: ex.Price}}, params, ReasonBrokerBracket)...)
				continue
			}
			if err != nil {
				if rep.Failed == nil {
					rep.Failed = map[string]string{}
				}
				rep.Failed[ex.Instrument] = err.Error()
				m.log.Warn("close failed",
					zap.String("instrument", ex.Instrument),
					zap.String("action", "close_position"),
					zap.String("reason", ex.Reason),
					zap.Error(err))
				continue
			}
			m.log.Info("position closed",
				zap.String("instrument", ex.Instrument),
				zap.String("reason", ex.Reason),
				zap.Float64("mark", ex.Price))
			if len(fills) == 0 {
				fills = []broker.CloseFill{{Instrument: ex.Instrument, Price: ex.Price}}
			}
			rep.Closed = append(rep.Closed, m.recordFills(fills, params, ex.Reason)...)
		}
		rep.Closed = unique(rep.Closed)
		return rep, nil
	}
}

// RecordStale journals params whose position the broker already closed.
func (m *Monitor) RecordStale(instruments []string, params map[string]risk.TradeParams) {
	for _, inst := range instruments {
		tp := params[inst]
		m.record(broker.CloseFill{Instrument: inst, TradeID: tp.TradeID, Units: tp.Size}, tp, ReasonBrokerBracket)
		m.log.Info("position closed by broker", zap.String("instrument", inst))
	}
}

// RecordFills journals the fills of a close done outside Check, such as the
// kill switch, and returns the closed instruments.
func (m *Monitor) RecordFills(fills []broker.CloseFill, params map[string]risk.TradeParams, reason string) []string {
	return m.recordFills(fills, params, reason)
}

func (m *Monitor) recordFills(fills []broker.CloseFill, params map[string]risk.TradeParams, reason string) []string {
	out := make([]string, 0, len(fills))
	for _, f := range fills {
		m.record(f, params[f.Instrument], reason)
		out = append(out, f.Instrument)
	}
	return unique(out)
}

func (m *Monitor) record(f broker.CloseFill, tp risk.TradeParams, reason string) {
	m.metrics.Close(reason)
	err := m.journal.RecordClose(journal.CloseRecord{
		Time:        m.now(),
		Instrument:  f.Instrument,
		TradeID:     f.TradeID,
		Units:       f.Units,
		ExitPrice:   f.Price,
		StopPrice:   tp.StopPrice,
		TargetPrice: tp.TargetPrice,
		RealizedPL:  f.RealizedPL,
		Reason:      reason,
	})
	if err != nil {
		m.log.Warn("journal write failed", zap.String("instrument", f.Instrument), zap.Error(err))
	}
}

func unique(in []string) []string {
	if len(in) == 0 {
		return in
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
