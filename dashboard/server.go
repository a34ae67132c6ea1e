// Package dashboard serves the read-only operator view and the kill switch.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/lifecycle"
	"github.com/rustyeddy/fxpilot/risk"
)

// Killer is the kill switch entry point.
type Killer interface {
	Kill(ctx context.Context) lifecycle.KillOutcome
}

// View is the JSON served at /api/state and pushed over /ws.
type View struct {
	Phase          lifecycle.Phase             `json:"phase"`
	OpeningBalance float64                     `json:"opening_balance"`
	Balance        float64                     `json:"balance"`
	UnrealizedPL   float64                     `json:"unrealized_pl"`
	Equity         float64                     `json:"equity"`
	Params         map[string]risk.TradeParams `json:"open_trade_params"`
	Stats          Stats                       `json:"stats"`
	LastCycle      *lifecycle.CycleResult      `json:"last_cycle,omitempty"`
	LastKill       *lifecycle.KillOutcome      `json:"last_kill,omitempty"`
	History        []lifecycle.EquityPoint     `json:"history,omitempty"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

type Options struct {
	RiskFreeRate float64
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
	// KillTimeout bounds a kill switch request; zero means 30s.
	KillTimeout time.Duration
	Logger      *zap.Logger
}

type Server struct {
	store       *lifecycle.Store
	killer      Killer
	hub         *Hub
	riskFree    float64
	gatherer    prometheus.Gatherer
	killTimeout time.Duration
	log         *zap.Logger
}

func NewServer(store *lifecycle.Store, killer Killer, opts Options) *Server {
	s := &Server{
		store:       store,
		killer:      killer,
		riskFree:    opts.RiskFreeRate,
		gatherer:    opts.Gatherer,
		killTimeout: opts.KillTimeout,
		log:         opts.Logger,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.killTimeout <= 0 {
		s.killTimeout = 30 * time.Second
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("dashboard")
	s.hub = NewHub(s.log)
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// View builds the current view; withHistory includes the equity samples.
func (s *Server) View(withHistory bool) View {
	st := s.store.Snapshot()
	v := View{
		Phase:          st.Phase,
		OpeningBalance: st.OpeningBalance,
		Balance:        st.Balance,
		UnrealizedPL:   st.UnrealizedPL,
		Equity:         st.Balance + st.UnrealizedPL,
		Params:         st.Params,
		Stats:          Compute(st.History, s.riskFree),
		LastCycle:      st.LastCycle,
		LastKill:       st.LastKill,
		UpdatedAt:      st.UpdatedAt,
	}
	if withHistory {
		v.History = st.History
	}
	return v
}

// Publish pushes the current view to websocket clients.
func (s *Server) Publish() {
	if s.hub.Clients() == 0 {
		return
	}
	data, err := json.Marshal(s.View(false))
	if err != nil {
		s.log.Warn("encode view failed", zap.Error(err))
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/kill", s.handleKill)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		data, _ := json.Marshal(s.View(false))
		s.hub.ServeWS(w, r, data)
	})
	return mux
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	withHistory := r.URL.Query().Get("history") == "true"
	writeJSON(w, http.StatusOK, s.View(withHistory))
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	if s.killer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "kill switch not wired"})
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.killTimeout)
	defer cancel()
	s.log.Warn("kill switch requested", zap.String("remote", r.RemoteAddr))
	out := s.killer.Kill(ctx)
	status := http.StatusOK
	if !out.OK {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
	s.Publish()
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
