package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/metrics"
	"github.com/rustyeddy/fxpilot/monitor"
	"github.com/rustyeddy/fxpilot/notify"
	"github.com/rustyeddy/fxpilot/orders"
	"github.com/rustyeddy/fxpilot/pkg/id"
	"github.com/rustyeddy/fxpilot/risk"
	"github.com/rustyeddy/fxpilot/signals"
)

// Step names where a cycle ended.
type Step string

const (
	StepIdle      Step = "idle"
	StepSignals   Step = "signals"
	StepAllocate  Step = "allocate"
	StepSubmit    Step = "submit"
	StepPositions Step = "positions"
	StepClose     Step = "close"
	StepRelist    Step = "relist"
	StepDone      Step = "done"
	StepPanic     Step = "panic"
)

// CycleResult describes one tick of the loop.
type CycleResult struct {
	ID        string    `json:"id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Phase     Phase     `json:"phase"`
	NextPhase Phase     `json:"next_phase"`
	Step      Step      `json:"step"`
	Err       error     `json:"-"`
	Error     string    `json:"error,omitempty"`

	Plans     int      `json:"plans,omitempty"`
	Omitted   int      `json:"omitted,omitempty"`
	Accepted  int      `json:"accepted,omitempty"`
	Rejected  int      `json:"rejected,omitempty"`
	Closed    []string `json:"closed,omitempty"`
	Pruned    []string `json:"pruned,omitempty"`
	Untracked []string `json:"untracked,omitempty"`
	Live      int      `json:"live"`
}

func (r CycleResult) OK() bool { return r.Err == nil }

func (r *CycleResult) fail(step Step, err error) {
	r.Step = step
	r.Err = err
	r.Error = err.Error()
}

type Options struct {
	Instruments  []string
	PollInterval time.Duration
	Journal      journal.Journal
	Metrics      *metrics.Metrics
	Notifier     notify.Notifier
	Logger       *zap.Logger
}

// Controller runs the SEEKING_ENTRY / MONITORING state machine.
type Controller struct {
	b        broker.Broker
	source   signals.Source
	alloc    *risk.Allocator
	submit   *orders.Submitter
	mon      *monitor.Monitor
	store    *Store
	insts    []string
	interval time.Duration
	journal  journal.Journal
	metrics  *metrics.Metrics
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time

	// cycleMu serialises cycles and the kill switch.
	cycleMu sync.Mutex
	mu      sync.Mutex
	cancel  context.CancelFunc
}

func NewController(b broker.Broker, src signals.Source, alloc *risk.Allocator, sub *orders.Submitter, mon *monitor.Monitor, store *Store, opts Options) (*Controller, error) {
	switch {
	case b == nil:
		return nil, errors.New("lifecycle: broker is required")
	case src == nil:
		return nil, errors.New("lifecycle: signal source is required")
	case alloc == nil || sub == nil || mon == nil || store == nil:
		return nil, errors.New("lifecycle: allocator, submitter, monitor and store are required")
	case len(opts.Instruments) == 0:
		return nil, errors.New("lifecycle: no instruments")
	}
	c := &Controller{
		b:        b,
		source:   src,
		alloc:    alloc,
		submit:   sub,
		mon:      mon,
		store:    store,
		insts:    append([]string(nil), opts.Instruments...),
		interval: opts.PollInterval,
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		log:      opts.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if c.interval <= 0 {
		c.interval = 5 * time.Second
	}
	if c.journal == nil {
		c.journal = journal.Nop{}
	}
	if c.notifier == nil {
		c.notifier = notify.Nop{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.Named("lifecycle")
	return c, nil
}

func (c *Controller) Store() *Store { return c.store }

// Run cycles immediately and then on every poll interval until ctx ends.
// No cycle failure or panic stops the loop.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("lifecycle started",
		zap.Strings("instruments", c.insts),
		zap.Duration("poll_interval", c.interval),
		zap.String("exit_mode", string(c.mon.Mode())))
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		c.safeCycle(ctx)
		select {
		case <-ctx.Done():
			c.log.Info("lifecycle stopped")
			return nil
		case <-t.C:
		}
	}
}

func (c *Controller) safeCycle(ctx context.Context) (res CycleResult) {
	defer func() {
		if r := recover(); r != nil {
			res = CycleResult{Start: c.now(), End: c.now(), Phase: c.store.Phase(), NextPhase: c.store.Phase()}
			res.fail(StepPanic, fmt.Errorf("panic: %v", r))
			c.metrics.CycleError(string(StepPanic))
			c.store.setLastCycle(res)
			c.log.Error("cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	return c.Cycle(ctx)
}

// Cycle runs one tick for the current phase. Failures come back in the
// result; local state is only changed by confirmed broker outcomes.
func (c *Controller) Cycle(ctx context.Context) CycleResult {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.setCancel(cancel)
	defer func() {
		c.setCancel(nil)
		cancel()
	}()

	res := CycleResult{ID: id.New(), Start: c.now(), Phase: c.store.Phase()}
	if res.Phase == Monitoring {
		c.monitorStep(ctx, &res)
	} else {
		c.seekStep(ctx, &res)
	}
	res.End = c.now()
	res.NextPhase = c.store.Phase()

	params := c.store.Params()
	c.metrics.Phase(res.NextPhase == Monitoring)
	c.metrics.OpenTradeParams(len(params))
	if res.Err != nil {
		c.metrics.CycleError(string(res.Step))
		c.log.Warn("cycle failed",
			zap.String("cycle", res.ID),
			zap.String("phase", string(res.Phase)),
			zap.String("action", string(res.Step)),
			zap.Error(res.Err))
	} else if res.Phase != res.NextPhase {
		c.log.Info("phase changed",
			zap.String("cycle", res.ID),
			zap.String("from", string(res.Phase)),
			zap.String("to", string(res.NextPhase)))
	}
	c.store.setLastCycle(res)
	return res
}

func (c *Controller) seekStep(ctx context.Context, res *CycleResult) {
	sigs, err := c.source.Signals(ctx, c.insts)
	if err != nil {
		res.fail(StepSignals, err)
		return
	}
	if !sigs.Actionable() {
		res.Step = StepIdle
		return
	}

	snap := broker.Take(ctx, c.b, c.insts, broker.QuotesPart|broker.AccountPart)
	if bal, ok := snap.Balance(); ok {
		c.store.SetOpeningBalance(bal)
		c.store.SetAccount(bal, snap.Account.UnrealizedPL)
	}
	if snap.QuoteErr != nil {
		c.log.Warn("quotes unavailable", zap.String("action", "quotes"), zap.Error(snap.QuoteErr))
	}
	plans, omitted, err := c.alloc.Allocate(c.insts, sigs, snap)
	res.Omitted = len(omitted)
	if err != nil {
		if snap.AccountErr != nil {
			err = fmt.Errorf("%w: %v", err, snap.AccountErr)
		}
		res.fail(StepAllocate, err)
		return
	}
	plans = c.sizable(plans, res)
	res.Plans = len(plans)
	if len(plans) == 0 {
		res.Step = StepIdle
		return
	}

	out := c.submit.Submit(ctx, plans)
	res.Accepted, res.Rejected = out.Accepted(), out.Rejected()
	if res.Accepted > 0 {
		c.store.setPhase(Monitoring)
		res.Step = StepDone
		return
	}
	res.fail(StepSubmit, fmt.Errorf("all %d orders rejected", res.Rejected))
}

// sizable drops zero-unit plans; a pool with no weight sizes its members to
// zero and they are omitted rather than submitted.
func (c *Controller) sizable(plans []risk.Plan, res *CycleResult) []risk.Plan {
	out := plans[:0:0]
	for _, p := range plans {
		if p.Size == 0 {
			res.Omitted++
			c.log.Debug("zero-size plan omitted",
				zap.String("instrument", p.Instrument),
				zap.String("direction", p.Direction.String()),
				zap.Float64("strength", p.Strength))
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Controller) monitorStep(ctx context.Context, res *CycleResult) {
	snap := broker.Take(ctx, c.b, nil, broker.QuotesPart|broker.PositionsPart|broker.AccountPart)
	if !snap.HasPositions {
		res.fail(StepPositions, fmt.Errorf("open positions: %w", snap.PositionsErr))
		return
	}
	if bal, ok := snap.Balance(); ok {
		c.store.SetAccount(bal, snap.UnrealizedPL())
		c.metrics.Equity(bal, snap.UnrealizedPL())
	}

	params := c.store.Params()
	if stale := monitor.Stale(snap.Positions, params); len(stale) > 0 {
		c.mon.RecordStale(stale, params)
		c.store.Remove(stale...)
		for _, inst := range stale {
			delete(params, inst)
		}
		res.Pruned = stale
	}

	rep, err := c.mon.Check(ctx, snap, params)
	if err != nil {
		res.fail(StepPositions, err)
		return
	}
	res.Untracked = rep.Evaluation.Untracked
	res.Closed = rep.Closed
	c.store.Remove(rep.Closed...)

	live := countLive(snap.Positions)
	if len(rep.Closed) > 0 || rep.Bulk {
		pos, err := c.b.OpenPositions(ctx)
		if err != nil {
			res.fail(StepRelist, err)
			return
		}
		live = countLive(pos)
	}
	res.Live = live

	if len(rep.Failed) > 0 {
		res.fail(StepClose, closeError(rep.Failed))
	}
	if live > 0 {
		if res.Err == nil {
			res.Step = StepDone
		}
		return
	}

	c.goFlat(ctx, snap)
	if res.Err == nil {
		res.Step = StepDone
	}
}

// goFlat resets to SEEKING_ENTRY with a fresh opening balance.
func (c *Controller) goFlat(ctx context.Context, snap broker.Snapshot) {
	bal, _ := snap.Balance()
	if acct, err := c.b.Account(ctx); err == nil {
		bal = acct.Balance
	} else {
		c.log.Warn("balance refresh failed", zap.String("action", "account"), zap.Error(err))
	}
	c.store.ResetFlat(bal)
	c.log.Info("flat, seeking entries", zap.Float64("opening_balance", bal))
}

func (c *Controller) setCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = cancel
}

// interrupt cancels the in-flight cycle, if any.
func (c *Controller) interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func countLive(pos []broker.Position) int {
	n := 0
	for _, p := range pos {
		if p.Units != 0 {
			n++
		}
	}
	return n
}

func closeError(failed map[string]string) error {
	keys := make([]string, 0, len(failed))
	for k := range failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+failed[k])
	}
	return fmt.Errorf("close failed: %s", strings.Join(parts, "; "))
}
