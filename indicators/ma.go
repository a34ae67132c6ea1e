package indicators

// SMA is the mean of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if err := need(closes, period, period); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), nil
}

// EMA is the exponential moving average with span period, seeded with the
// first close (no SMA warmup), so every close contributes.
func EMA(closes []float64, period int) (float64, error) {
	if err := need(closes, period, period); err != nil {
		return 0, err
	}
	alpha := 2.0 / float64(period+1)
	ema := closes[0]
	for _, c := range closes[1:] {
		ema = alpha*c + (1-alpha)*ema
	}
	return ema, nil
}
