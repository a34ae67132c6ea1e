// Package lifecycle owns the trading state and drives the seek/monitor loop.
package lifecycle

import (
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/fxpilot/risk"
)

type Phase string

const (
	SeekingEntry Phase = "SEEKING_ENTRY"
	Monitoring   Phase = "MONITORING"
)

// EquityPoint is one sample of the account taken by the dashboard poller.
type EquityPoint struct {
	Time         time.Time `json:"time"`
	Balance      float64   `json:"balance"`
	UnrealizedPL float64   `json:"unrealized_pl"`
	Equity       float64   `json:"equity"`
	// ReturnPct is relative to the first sampled equity.
	ReturnPct float64 `json:"return_pct"`
}

// State is a point-in-time copy of the store. Mutating it does not affect
// the store.
type State struct {
	Phase          Phase                       `json:"phase"`
	OpeningBalance float64                     `json:"opening_balance"`
	Balance        float64                     `json:"balance"`
	UnrealizedPL   float64                     `json:"unrealized_pl"`
	Params         map[string]risk.TradeParams `json:"open_trade_params"`
	History        []EquityPoint               `json:"history"`
	LastCycle      *CycleResult                `json:"last_cycle,omitempty"`
	LastKill       *KillOutcome                `json:"last_kill,omitempty"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// Store is the single container for state shared between the decision loop
// and its readers. All access goes through its methods.
type Store struct {
	mu sync.RWMutex

	phase          Phase
	openingBalance float64
	balance        float64
	unrealized     float64
	params         map[string]risk.TradeParams

	history    []EquityPoint
	maxHistory int
	baseEquity float64

	lastCycle *CycleResult
	lastKill  *KillOutcome
	updated   time.Time
}

// NewStore returns a store in SEEKING_ENTRY keeping at most maxHistory
// equity points (<= 0 means 10000).
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = 10000
	}
	return &Store{
		phase:      SeekingEntry,
		params:     map[string]risk.TradeParams{},
		maxHistory: maxHistory,
	}
}

func (s *Store) touch() { s.updated = time.Now().UTC() }

func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Store) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	s.touch()
}

// Open records the exit levels of an accepted order.
func (s *Store) Open(tp risk.TradeParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[tp.Instrument] = tp
	s.touch()
}

// Params returns a copy of the OpenTradeParams table.
func (s *Store) Params() map[string]risk.TradeParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyParams(s.params)
}

// Remove drops the params of the given instruments. Unknown instruments are
// ignored.
func (s *Store) Remove(instruments ...string) {
	if len(instruments) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range instruments {
		delete(s.params, inst)
	}
	s.touch()
}

// ResetFlat clears every param and returns to SEEKING_ENTRY. A positive
// balance becomes the new opening balance.
func (s *Store) ResetFlat(balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = map[string]risk.TradeParams{}
	s.phase = SeekingEntry
	if balance > 0 {
		s.openingBalance = balance
		s.balance = balance
	}
	s.unrealized = 0
	s.touch()
}

func (s *Store) OpeningBalance() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openingBalance
}

// SetOpeningBalance sets the opening balance if none is recorded yet.
func (s *Store) SetOpeningBalance(balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openingBalance == 0 && balance > 0 {
		s.openingBalance = balance
		s.touch()
	}
}

// SetAccount records the latest balance and aggregate unrealized P/L.
func (s *Store) SetAccount(balance, unrealized float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
	s.unrealized = unrealized
	s.touch()
}

// AppendEquity records a sample, fills in Equity and ReturnPct and drops
// the oldest samples beyond the bound. It returns the stored point.
func (s *Store) AppendEquity(p EquityPoint) EquityPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Equity = p.Balance + p.UnrealizedPL
	if s.baseEquity == 0 {
		s.baseEquity = p.Equity
	}
	if s.baseEquity != 0 {
		p.ReturnPct = (p.Equity - s.baseEquity) / s.baseEquity * 100
	}
	s.history = append(s.history, p)
	if over := len(s.history) - s.maxHistory; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	s.balance = p.Balance
	s.unrealized = p.UnrealizedPL
	s.touch()
	return p
}

func (s *Store) History() []EquityPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]EquityPoint(nil), s.history...)
}

func (s *Store) setLastCycle(r CycleResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Closed = append([]string(nil), r.Closed...)
	r.Pruned = append([]string(nil), r.Pruned...)
	r.Untracked = append([]string(nil), r.Untracked...)
	s.lastCycle = &r
}

func (s *Store) setLastKill(k KillOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKill = &k
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Phase:          s.phase,
		OpeningBalance: s.openingBalance,
		Balance:        s.balance,
		UnrealizedPL:   s.unrealized,
		Params:         copyParams(s.params),
		History:        append([]EquityPoint(nil), s.history...),
		UpdatedAt:      s.updated,
	}
	if s.lastCycle != nil {
		c := *s.lastCycle
		c.Closed = append([]string(nil), c.Closed...)
		c.Pruned = append([]string(nil), c.Pruned...)
		c.Untracked = append([]string(nil), c.Untracked...)
		st.LastCycle = &c
	}
	if s.lastKill != nil {
		k := *s.lastKill
		st.LastKill = &k
	}
	return st
}

// Instruments returns the instruments with recorded params, sorted.
func (st State) Instruments() []string {
	out := make([]string, 0, len(st.Params))
	for inst := range st.Params {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

func copyParams(in map[string]risk.TradeParams) map[string]risk.TradeParams {
	out := make(map[string]risk.TradeParams, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
