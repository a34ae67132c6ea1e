// Package metrics exposes the controller's Prometheus collectors:
//
//	fxpilot_orders_total{result}         orders by accepted|rejected
//	fxpilot_closes_total{reason}         confirmed closes by exit reason
//	fxpilot_cycle_errors_total{step}     failed lifecycle steps
//	fxpilot_kill_switch_total{result}    kill switch invocations by ok|failed
//	fxpilot_phase                        0 seeking entry, 1 monitoring
//	fxpilot_equity                       last observed balance
//	fxpilot_unrealized_pnl               last observed unrealized PnL
//	fxpilot_open_trade_params            size of the exit-level table
//
// A nil *Metrics is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	orders      *prometheus.CounterVec
	closes      *prometheus.CounterVec
	cycleErrors *prometheus.CounterVec
	kills       *prometheus.CounterVec
	phase       prometheus.Gauge
	equity      prometheus.Gauge
	unrealized  prometheus.Gauge
	params      prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fxpilot_orders_total", Help: "Orders submitted, by result."},
			[]string{"result"},
		),
		closes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fxpilot_closes_total", Help: "Confirmed position closes, by reason."},
			[]string{"reason"},
		),
		cycleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fxpilot_cycle_errors_total", Help: "Lifecycle steps that failed, by step."},
			[]string{"step"},
		),
		kills: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fxpilot_kill_switch_total", Help: "Kill switch invocations, by result."},
			[]string{"result"},
		),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxpilot_phase", Help: "Lifecycle phase: 0 seeking entry, 1 monitoring.",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxpilot_equity", Help: "Last observed account balance.",
		}),
		unrealized: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxpilot_unrealized_pnl", Help: "Last observed unrealized PnL.",
		}),
		params: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxpilot_open_trade_params", Help: "Instruments with recorded exit levels.",
		}),
	}
	for _, c := range []prometheus.Collector{m.orders, m.closes, m.cycleErrors, m.kills, m.phase, m.equity, m.unrealized, m.params} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Order(accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.orders.WithLabelValues(result).Inc()
}

func (m *Metrics) Close(reason string) {
	if m == nil {
		return
	}
	m.closes.WithLabelValues(reason).Inc()
}

func (m *Metrics) CycleError(step string) {
	if m == nil {
		return
	}
	m.cycleErrors.WithLabelValues(step).Inc()
}

func (m *Metrics) Kill(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.kills.WithLabelValues(result).Inc()
}

func (m *Metrics) Phase(monitoring bool) {
	if m == nil {
		return
	}
	if monitoring {
		m.phase.Set(1)
	} else {
		m.phase.Set(0)
	}
}

func (m *Metrics) Equity(balance, unrealized float64) {
	if m == nil {
		return
	}
	m.equity.Set(balance)
	m.unrealized.Set(unrealized)
}

func (m *Metrics) OpenTradeParams(n int) {
	if m == nil {
		return
	}
	m.params.Set(float64(n))
}
