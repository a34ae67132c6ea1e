// Package indicators computes moving averages and RSI over candle closes.
// Every function takes closes oldest first and reports the value at the
// newest close.
package indicators

import (
	"errors"
	"fmt"
)

var ErrNotEnoughData = errors.New("not enough data")

func need(closes []float64, period, n int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < n {
		return fmt.Errorf("need %d closes, got %d: %w", n, len(closes), ErrNotEnoughData)
	}
	return nil
}
