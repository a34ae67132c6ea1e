// Package monitor decides which live positions to close and closes them.
package monitor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/risk"
)

// ExitMode selects how positions are exited. A deployment runs exactly one.
type ExitMode string

const (
	// Bracket closes each instrument when its own stop or target is crossed.
	Bracket ExitMode = "bracket"
	// AccountMode closes everything when total unrealized P/L crosses a bound.
	AccountMode ExitMode = "account"
)

func ParseExitMode(s string) (ExitMode, error) {
	switch ExitMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Bracket:
		return Bracket, nil
	case AccountMode:
		return AccountMode, nil
	default:
		return "", fmt.Errorf("unknown exit mode %q (want bracket|account)", s)
	}
}

// Close reasons.
const (
	ReasonTakeProfit    = "take_profit"
	ReasonStopLoss      = "stop_loss"
	ReasonAccountStop   = "account_stop"
	ReasonAccountTarget = "account_target"
	ReasonBrokerBracket = "broker_bracket"
	ReasonKillSwitch    = "kill_switch"
)

// Exit is an instrument marked for close.
type Exit struct {
	Instrument string           `json:"instrument"`
	Reason     string           `json:"reason"`
	Price      float64          `json:"price"`
	Params     risk.TradeParams `json:"params"`
}

// Evaluation is the outcome of a bracket pass over the live positions.
type Evaluation struct {
	Close []Exit `json:"close"`
	// Untracked positions have no recorded exit levels and are left alone.
	Untracked []string `json:"untracked,omitempty"`
	// Unpriced positions have levels but no mark in the snapshot.
	Unpriced []string `json:"unpriced,omitempty"`
}

// Marker prices a position. broker.Snapshot satisfies it.
type Marker interface {
	Mark(p broker.Position) (float64, bool)
}

// BracketExit reports whether price crosses the levels of tp. Longs exit at
// or above the target and at or below the stop; shorts the other way round.
func BracketExit(tp risk.TradeParams, long bool, price float64) (string, bool) {
	if long {
		switch {
		case price >= tp.TargetPrice:
			return ReasonTakeProfit, true
		case price <= tp.StopPrice:
			return ReasonStopLoss, true
		}
		return "", false
	}
	switch {
	case price <= tp.TargetPrice:
		return ReasonTakeProfit, true
	case price >= tp.StopPrice:
		return ReasonStopLoss, true
	}
	return "", false
}

// EvaluateBrackets checks every live position against its recorded levels.
// Results are ordered by instrument.
func EvaluateBrackets(positions []broker.Position, params map[string]risk.TradeParams, marks Marker) Evaluation {
	var ev Evaluation
	for _, p := range positions {
		if p.Units == 0 {
			continue
		}
		tp, ok := params[p.Instrument]
		if !ok {
			ev.Untracked = append(ev.Untracked, p.Instrument)
			continue
		}
		price, ok := marks.Mark(p)
		if !ok {
			ev.Unpriced = append(ev.Unpriced, p.Instrument)
			continue
		}
		if reason, hit := BracketExit(tp, p.Units > 0, price); hit {
			ev.Close = append(ev.Close, Exit{Instrument: p.Instrument, Reason: reason, Price: price, Params: tp})
		}
	}
	sort.Slice(ev.Close, func(i, j int) bool { return ev.Close[i].Instrument < ev.Close[j].Instrument })
	sort.Strings(ev.Untracked)
	sort.Strings(ev.Unpriced)
	return ev
}

// AccountExit is the pair of account-wide P/L bounds, both positive amounts
// in account currency.
type AccountExit struct {
	StopLoss   float64 `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit float64 `json:"take_profit" yaml:"take_profit"`
}

func DefaultAccountExit() AccountExit {
	return AccountExit{StopLoss: 5, TakeProfit: 3.75}
}

func (a AccountExit) Validate() error {
	if a.StopLoss <= 0 || a.TakeProfit <= 0 {
		return fmt.Errorf("account exit bounds must be > 0 (stop_loss=%v take_profit=%v)", a.StopLoss, a.TakeProfit)
	}
	return nil
}

// EvaluateAccount compares total unrealized P/L against the account bounds.
func EvaluateAccount(totalPL float64, a AccountExit) (string, bool) {
	switch {
	case totalPL <= -a.StopLoss:
		return ReasonAccountStop, true
	case totalPL >= a.TakeProfit:
		return ReasonAccountTarget, true
	}
	return "", false
}

// Stale returns the instruments that have recorded levels but no live
// position, sorted.
func Stale(positions []broker.Position, params map[string]risk.TradeParams) []string {
	live := make(map[string]bool, len(positions))
	for _, p := range positions {
		if p.Units != 0 {
			live[p.Instrument] = true
		}
	}
	var out []string
	for inst := range params {
		if !live[inst] {
			out = append(out, inst)
		}
	}
	sort.Strings(out)
	return out
}
