// journal/journal.go
package journal

import (
	"fmt"
	"strings"
	"time"
)

// OrderRecord is one submission attempt, accepted or not.
type OrderRecord struct {
	ID          string
	Time        time.Time
	Instrument  string
	Direction   string
	Units       float64
	Price       float64 // reference price used for sizing
	StopPrice   float64
	TargetPrice float64
	FillPrice   float64
	TradeID     string
	ClientID    string
	Accepted    bool
	Reason      string
}

// CloseRecord is a confirmed close of an instrument's position.
type CloseRecord struct {
	ID          string
	Time        time.Time
	Instrument  string
	TradeID     string
	Units       float64
	ExitPrice   float64
	StopPrice   float64
	TargetPrice float64
	RealizedPL  float64
	Reason      string
}

type EquitySnapshot struct {
	Time         time.Time
	Balance      float64
	UnrealizedPL float64
	Equity       float64
	ReturnPct    float64
}

// KillRecord is one kill switch invocation.
type KillRecord struct {
	ID         string
	Time       time.Time
	OK         bool
	Closed     int
	RealizedPL float64
	Error      string
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordClose(CloseRecord) error
	RecordEquity(EquitySnapshot) error
	RecordKill(KillRecord) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordClose(CloseRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordKill(KillRecord) error       { return nil }
func (Nop) Close() error                      { return nil }

// Open builds a journal of the given kind: none, csv (path is a
// directory) or sqlite (path is a database file).
func Open(kind, path string) (Journal, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		return Nop{}, nil
	case "csv":
		return NewCSV(path)
	case "sqlite", "sqlite3":
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown journal kind %q (want none|csv|sqlite)", kind)
	}
}
