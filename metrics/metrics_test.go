package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value reads one sample from reg; label is "" for unlabelled metrics.
func value(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" {
				if len(m.GetLabel()) == 0 || m.GetLabel()[0].GetValue() != label {
					continue
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("no sample %s{%s}", name, label)
	return 0
}

func TestCollectors(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Order(true)
	m.Order(true)
	m.Order(false)
	m.Close("take_profit")
	m.CycleError("signals")
	m.Kill(false)
	m.Phase(true)
	m.Equity(10050, -3.5)
	m.OpenTradeParams(2)

	assert.Equal(t, 2.0, value(t, reg, "fxpilot_orders_total", "accepted"))
	assert.Equal(t, 1.0, value(t, reg, "fxpilot_orders_total", "rejected"))
	assert.Equal(t, 1.0, value(t, reg, "fxpilot_closes_total", "take_profit"))
	assert.Equal(t, 1.0, value(t, reg, "fxpilot_cycle_errors_total", "signals"))
	assert.Equal(t, 1.0, value(t, reg, "fxpilot_kill_switch_total", "failed"))
	assert.Equal(t, 1.0, value(t, reg, "fxpilot_phase", ""))
	assert.Equal(t, 10050.0, value(t, reg, "fxpilot_equity", ""))
	assert.Equal(t, -3.5, value(t, reg, "fxpilot_unrealized_pnl", ""))
	assert.Equal(t, 2.0, value(t, reg, "fxpilot_open_trade_params", ""))

	_, err = New(reg)
	assert.Error(t, err, "second registration on the same registry")
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Order(true)
		m.Close("x")
		m.CycleError("x")
		m.Kill(true)
		m.Phase(false)
		m.Equity(1, 2)
		m.OpenTradeParams(0)
	})
}
