package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/fxpilot/market"
)

// Part selects what a Snapshot fetches.
type Part uint8

const (
	QuotesPart Part = 1 << iota
	AccountPart
	PositionsPart
)

// Snapshot is a single consistent read of the gateway. Each part is fetched
// once; a failed part is recorded in its Err field and left empty, it never
// fails the whole snapshot.
type Snapshot struct {
	Time time.Time

	Quotes   map[string]market.Quote
	QuoteErr error

	Account    Account
	HasAccount bool
	AccountErr error

	Positions    []Position
	HasPositions bool
	PositionsErr error
}

// Take reads the requested parts from b. When PositionsPart is requested
// the quoted instruments are extended with every instrument that has an open
// position, so marks come from the same read as the positions.
func Take(ctx context.Context, b Broker, instruments []string, parts Part) Snapshot {
	snap := Snapshot{Time: time.Now().UTC(), Quotes: map[string]market.Quote{}}

	if parts&PositionsPart != 0 {
		pos, err := b.OpenPositions(ctx)
		if err != nil {
			snap.PositionsErr = err
		} else {
			snap.Positions = pos
			snap.HasPositions = true
			instruments = mergeInstruments(instruments, pos)
		}
	}

	if parts&QuotesPart != 0 && len(instruments) > 0 {
		q, err := b.Quotes(ctx, instruments)
		if err != nil {
			snap.QuoteErr = err
		}
		for k, v := range q {
			snap.Quotes[k] = v
		}
	}

	if parts&AccountPart != 0 {
		acct, err := b.Account(ctx)
		if err != nil {
			snap.AccountErr = err
		} else {
			snap.Account = acct
			snap.HasAccount = true
		}
	}

	return snap
}

// Price is the quote used for sizing and levels: the bid.
func (s Snapshot) Price(instrument string) (float64, bool) {
	q, ok := s.Quotes[instrument]
	if !ok || q.Bid <= 0 {
		return 0, false
	}
	return q.Bid, true
}

// Balance returns the account balance when the account part was read.
func (s Snapshot) Balance() (float64, bool) {
	if !s.HasAccount {
		return 0, false
	}
	return s.Account.Balance, true
}

// Mark is the price a position would close at: bid for longs, ask for shorts.
func (s Snapshot) Mark(p Position) (float64, bool) {
	q, ok := s.Quotes[p.Instrument]
	if !ok {
		return 0, false
	}
	mark := q.Bid
	if p.Units < 0 {
		mark = q.Ask
	}
	if mark <= 0 {
		return 0, false
	}
	return mark, true
}

// UnrealizedPL sums unrealized P/L over the open positions.
func (s Snapshot) UnrealizedPL() float64 {
	var total float64
	for _, p := range s.Positions {
		total += p.UnrealizedPL
	}
	return total
}

func mergeInstruments(instruments []string, pos []Position) []string {
	seen := make(map[string]bool, len(instruments)+len(pos))
	out := make([]string, 0, len(instruments)+len(pos))
	for _, inst := range instruments {
		if !seen[inst] {
			seen[inst] = true
			out = append(out, inst)
		}
	}
	for _, p := range pos {
		if !seen[p.Instrument] {
			seen[p.Instrument] = true
			out = append(out, p.Instrument)
		}
	}
	return out
}
