package indicators

import (
	"fmt"

	"github.com/evdnx/goti"
)

// RSI is the relative strength index using simple averages of the last
// period gains and losses. No losses in the window gives 100.
func RSI(closes []float64, period int) (float64, error) {
	if err := need(closes, period, period+1); err != nil {
		return 0, err
	}
	var gain, loss float64
	window := closes[len(closes)-period-1:]
	for i := 1; i < len(window); i++ {
		d := window[i] - window[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100, nil
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100 - 100/(1+rs), nil
}

// SuiteRSI feeds closes through a goti indicator suite and returns its
// Wilder-smoothed RSI. The suite uses its own default period.
func SuiteRSI(closes []float64, overbought, oversold float64) (float64, error) {
	cfg := goti.DefaultConfig()
	if overbought > 0 {
		cfg.RSIOverbought = overbought
	}
	if oversold > 0 {
		cfg.RSIOversold = oversold
	}
	suite, err := goti.NewIndicatorSuiteWithConfig(cfg)
	if err != nil {
		return 0, fmt.Errorf("goti suite: %w", err)
	}
	for _, c := range closes {
		if err := suite.Add(c, c, c, 1); err != nil {
			return 0, fmt.Errorf("goti add: %w", err)
		}
	}
	v, err := suite.GetRSI().Calculate()
	if err != nil {
		return 0, fmt.Errorf("goti rsi: %w", err)
	}
	return v, nil
}
