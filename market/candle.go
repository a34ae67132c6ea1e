package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) candlestick data
type Candle struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Complete bool
}

// Closes extracts closing prices, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
