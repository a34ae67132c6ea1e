package market

import (
	"errors"
	"sync"
	"time"
)

var ErrNoQuote = errors.New("quote not found")

// Quote is a point-in-time bid/ask for one instrument.
type Quote struct {
	Instrument string
	Bid        float64
	Ask        float64
	Time       time.Time
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// QuoteStore keeps the latest quote per instrument.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Instrument] = q
}

func (qs *QuoteStore) Get(instr string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[instr]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}
