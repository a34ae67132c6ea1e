// Package signals produces per-instrument trading directions.
package signals

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type Direction string

const (
	Buy     Direction = "BUY"
	Sell    Direction = "SELL"
	Hold    Direction = "HOLD"
	Unknown Direction = "UNKNOWN"
)

func (d Direction) String() string {
	if d == "" {
		return string(Unknown)
	}
	return string(d)
}

// Actionable reports whether d asks for a position.
func (d Direction) Actionable() bool {
	return d == Buy || d == Sell
}

// ParseDirection accepts the four directions in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case Buy, Sell, Hold, Unknown:
		return d, nil
	case "":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unknown direction %q (want BUY|SELL|HOLD|UNKNOWN)", s)
	}
}

// Signal is one decision-cycle reading for an instrument. Strength is the
// oscillator value behind the direction; lower means stronger conviction.
type Signal struct {
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Strength   float64   `json:"strength"`
}

// Set maps instrument to its signal.
type Set map[string]Signal

// Actionable reports whether any signal is BUY or SELL.
func (s Set) Actionable() bool {
	for _, sig := range s {
		if sig.Direction.Actionable() {
			return true
		}
	}
	return false
}

// Get returns the signal for instrument, UNKNOWN when absent.
func (s Set) Get(instrument string) Signal {
	if sig, ok := s[instrument]; ok {
		return sig
	}
	return Signal{Instrument: instrument, Direction: Unknown}
}

// Sorted returns the signals ordered by instrument.
func (s Set) Sorted() []Signal {
	out := make([]Signal, 0, len(s))
	for _, sig := range s {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// Source produces signals for a list of instruments. A failure for one
// instrument is reported as UNKNOWN for it; err is reserved for failures
// that leave no usable signal at all.
type Source interface {
	Signals(ctx context.Context, instruments []string) (Set, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, instruments []string) (Set, error)

func (f SourceFunc) Signals(ctx context.Context, instruments []string) (Set, error) {
	return f(ctx, instruments)
}
