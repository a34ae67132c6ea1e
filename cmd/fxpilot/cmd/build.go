package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/broker/oanda"
	"github.com/rustyeddy/fxpilot/broker/paper"
	"github.com/rustyeddy/fxpilot/config"
	"github.com/rustyeddy/fxpilot/dashboard"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/lifecycle"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/metrics"
	"github.com/rustyeddy/fxpilot/monitor"
	"github.com/rustyeddy/fxpilot/notify"
	"github.com/rustyeddy/fxpilot/orders"
	"github.com/rustyeddy/fxpilot/risk"
	"github.com/rustyeddy/fxpilot/signals"
)

// app is one fully wired fxpilot process.
type app struct {
	cfg *config.Config
	log *zap.Logger

	// live is the OANDA client; nil when running paper without a token.
	live *oanda.Client
	// paper is the local engine; nil when trading OANDA directly.
	paper   *paper.Engine
	gateway broker.Broker

	journal    journal.Journal
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	notifier   notify.Notifier
	store      *lifecycle.Store
	controller *lifecycle.Controller
	server     *dashboard.Server
	poller     *dashboard.Poller
}

// gateways returns the live client (when a token is configured), the paper
// engine (paper kind only) and the gateway orders go through.
func gateways(cfg *config.Config, log *zap.Logger) (*oanda.Client, *paper.Engine, broker.Broker, error) {
	timeout, err := cfg.Broker.CallTimeout()
	if err != nil {
		return nil, nil, nil, err
	}

	var live *oanda.Client
	if cfg.Broker.Token != "" {
		live, err = oanda.New(oanda.Options{
			Environment:       cfg.Broker.Environment,
			AccountID:         cfg.Broker.AccountID,
			Token:             cfg.Broker.Token,
			RequestsPerSecond: cfg.Broker.RequestsPerSecond,
			Timeout:           timeout,
			Logger:            log,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("oanda client: %w", err)
		}
	}

	if cfg.Broker.Kind != "paper" {
		return live, nil, broker.WithTimeout(live, timeout), nil
	}

	p := cfg.Broker.Paper
	id := cfg.Broker.AccountID
	if id == "" {
		id = "paper"
	}
	engine := paper.NewEngine(id, p.Currency, p.Balance)
	now := time.Now().UTC()
	for inst, q := range p.Quotes {
		engine.SetQuote(market.Quote{Instrument: inst, Bid: q.Bid, Ask: q.Ask, Time: now})
	}
	return live, engine, broker.WithTimeout(engine, timeout), nil
}

func signalSource(cfg *config.Config, candles broker.CandleSource, log *zap.Logger) (signals.Source, error) {
	switch cfg.Signals.Kind {
	case "static":
		return cfg.Signals.StaticSet()
	case "marsi":
		if candles == nil {
			return nil, fmt.Errorf("marsi signals need an OANDA token for candles")
		}
		return signals.NewMARSI(candles, cfg.Signals.MARSI(), log)
	default:
		return nil, fmt.Errorf("unknown signals kind %q", cfg.Signals.Kind)
	}
}

func notifier(cfg *config.Config, log *zap.Logger) notify.Notifier {
	n := cfg.Notify
	multi := notify.Multi{notify.NewLog(log)}
	if n.DiscordWebhook != "" {
		multi = append(multi, notify.NewDiscord(n.DiscordWebhook))
	}
	if n.SlackWebhook != "" {
		multi = append(multi, notify.NewSlack(n.SlackWebhook))
	}
	if n.SMTP.Enabled() {
		multi = append(multi, notify.NewEmail(n.SMTP))
	}
	return notify.NewAsync(multi, n.NotifyTimeout(), log)
}

// build wires every component from a validated config.
func build(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	var err error
	if a.live, a.paper, a.gateway, err = gateways(cfg, log); err != nil {
		return nil, err
	}

	var candles broker.CandleSource
	if a.live != nil {
		candles = a.live
	}
	src, err := signalSource(cfg, candles, log)
	if err != nil {
		return nil, err
	}

	if a.journal, err = journal.Open(cfg.Journal.Type, cfg.Journal.Path); err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if a.metrics, err = metrics.New(a.registry); err != nil {
		return nil, a.fail(fmt.Errorf("metrics: %w", err))
	}

	a.notifier = notifier(cfg, log)

	alloc, err := risk.NewAllocator(cfg.Allocation.Params(), log)
	if err != nil {
		return nil, a.fail(err)
	}

	history := cfg.Dashboard.History
	a.store = lifecycle.NewStore(history)

	poll, settle := cfg.Lifecycle.Intervals()
	sub := orders.NewSubmitter(a.gateway, a.store, orders.Options{
		Settle:  settle,
		Journal: a.journal,
		Metrics: a.metrics,
		Logger:  log,
	})

	mon, err := monitor.New(a.gateway, monitor.Options{
		Mode:    monitor.ExitMode(cfg.Lifecycle.ExitMode),
		Account: cfg.Lifecycle.Exit(),
		Journal: a.journal,
		Metrics: a.metrics,
		Logger:  log,
	})
	if err != nil {
		return nil, a.fail(err)
	}

	a.controller, err = lifecycle.NewController(a.gateway, src, alloc, sub, mon, a.store, lifecycle.Options{
		Instruments:  cfg.Instruments,
		PollInterval: poll,
		Journal:      a.journal,
		Metrics:      a.metrics,
		Notifier:     a.notifier,
		Logger:       log,
	})
	if err != nil {
		return nil, a.fail(err)
	}

	a.server = dashboard.NewServer(a.store, a.controller, dashboard.Options{
		RiskFreeRate: cfg.Dashboard.RiskFreeRate,
		Gatherer:     a.registry,
		Logger:       log,
	})
	a.poller = dashboard.NewPoller(a.gateway, a.store, cfg.Dashboard.Interval(), a.journal, a.metrics, log)
	a.poller.OnSample = func(lifecycle.EquityPoint) { a.server.Publish() }

	return a, nil
}

// fail releases what build opened so far and returns err.
func (a *app) fail(err error) error {
	if a.journal != nil {
		err = multierr.Append(err, a.journal.Close())
	}
	return err
}

// feed keeps the paper book priced from OANDA. It is a no-op offline.
func (a *app) feed(ctx context.Context) error {
	if a.paper == nil || a.live == nil {
		return nil
	}
	poll, _ := a.cfg.Lifecycle.Intervals()
	return a.paper.Follow(ctx, a.live, a.cfg.Instruments, poll, a.log)
}

func (a *app) Close() error {
	return a.journal.Close()
}
