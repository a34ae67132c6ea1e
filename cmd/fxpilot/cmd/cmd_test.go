package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/broker/paper"
	"github.com/rustyeddy/fxpilot/config"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/lifecycle"
	"github.com/rustyeddy/fxpilot/market"
)

// offline is the default demo config without disk or network side effects.
// Builds take zap.NewNop: async notifications can log after a test returns.
func offline(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Journal = config.JournalConfig{Type: "none"}
	cfg.Lifecycle.SettleDelay = "0s"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds(time.UTC, "2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), end)

	_, _, err = dayBounds(time.UTC, "09/03/2024")
	assert.Error(t, err)
}

func TestBuildOfflinePaper(t *testing.T) {
	a, err := build(offline(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.live)
	require.NotNil(t, a.paper)
	assert.NoError(t, a.feed(context.Background()), "no feed without a token")

	res := a.controller.Cycle(context.Background())
	require.True(t, res.OK(), res.Error)
	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, lifecycle.Monitoring, a.store.Phase())
	assert.Len(t, a.store.Params(), 2)

	p, err := a.poller.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100000.0, p.Balance)
}

func TestBuildRejectsMissingCandles(t *testing.T) {
	cfg := offline(t)
	cfg.Signals.Kind = "marsi"
	_, err := build(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OANDA token")
}

func TestKillThroughDashboard(t *testing.T) {
	a, err := build(offline(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	require.True(t, a.controller.Cycle(context.Background()).OK())

	srv := httptest.NewServer(a.server.Handler())
	defer srv.Close()

	out, err := killRemote(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 2, out.Closed)
	assert.Equal(t, lifecycle.SeekingEntry, a.store.Phase())
	assert.Empty(t, a.store.Params())
}

func TestKillRemoteStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantOK  bool
		wantErr bool
	}{
		{"ok", http.StatusOK, `{"ok":true,"closed":3}`, true, false},
		{"broker failure", http.StatusBadGateway, `{"ok":false,"error":"boom"}`, false, false},
		{"not wired", http.StatusServiceUnavailable, `{"error":"kill switch not wired"}`, false, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/kill", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			out, err := killRemote(context.Background(), srv.URL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, out.OK)
		})
	}
}

func TestCloseAllJournalsKill(t *testing.T) {
	e := paper.NewEngine("001", "USD", 10000)
	e.SetQuote(market.Quote{Instrument: "EUR_USD", Bid: 1.1, Ask: 1.1002, Time: time.Now()})
	_, err := e.CreateMarketOrder(context.Background(), broker.MarketOrderRequest{Instrument: "EUR_USD", Units: 1000})
	require.NoError(t, err)

	dir := t.TempDir()
	out := closeAll(context.Background(), e, "csv", dir, zaptest.NewLogger(t))
	assert.True(t, out.OK)
	assert.Equal(t, 1, out.Closed)

	data, err := os.ReadFile(filepath.Join(dir, "kills.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "true")

	var buf bytes.Buffer
	printKill(&buf, out)
	assert.Contains(t, buf.String(), "Kill switch: OK")
	assert.Contains(t, buf.String(), "Closed:      1")
}

func TestPreview(t *testing.T) {
	cfg := offline(t)
	log := zaptest.NewLogger(t)
	_, _, gw, err := gateways(cfg, log)
	require.NoError(t, err)
	src, err := signalSource(cfg, nil, log)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, preview(context.Background(), &buf, cfg, gw, src, true, log))
	out := buf.String()
	assert.Contains(t, out, "EUR_USD")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "SELL")
	assert.Contains(t, out, "TARGET")
}

func TestLoadConfigForcesPaper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fx.yaml")
	data := []byte(`
broker:
  kind: oanda
  account_id: "001"
  token: secret
signals:
  kind: static
  static:
    EUR_USD: {direction: BUY, strength: 60}
`)
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := loadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, "oanda", cfg.Broker.Kind)

	cfg, err = loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "paper", cfg.Broker.Kind)
}

func TestPrintOrders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printOrders(&buf, []journal.OrderRecord{
		{Time: time.Now(), Instrument: "EUR_USD", Direction: "BUY", Units: 9091, FillPrice: 1.1, Accepted: true},
		{Time: time.Now(), Instrument: "GBP_USD", Direction: "SELL", Units: -500, Reason: "INSUFFICIENT_MARGIN"},
	}))
	assert.Contains(t, buf.String(), "accepted")
	assert.Contains(t, buf.String(), "rejected: INSUFFICIENT_MARGIN")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, Execute())
	assert.Contains(t, buf.String(), "fxpilot version "+version)
}
