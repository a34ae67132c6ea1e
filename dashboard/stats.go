package dashboard

import (
	"math"

	"github.com/rustyeddy/fxpilot/lifecycle"
)

// TradingDaysPerYear converts the annual risk-free rate to a daily one.
const TradingDaysPerYear = 260

// Stats summarises the equity history.
type Stats struct {
	Samples int `json:"samples"`
	// MaxDrawdown is the largest fall of the return series, in percentage points.
	MaxDrawdown     float64 `json:"max_drawdown"`
	DailyReturn     float64 `json:"daily_return"`
	DailyVolatility float64 `json:"daily_volatility"`
	Sharpe          float64 `json:"sharpe"`
	Sortino         float64 `json:"sortino"`
	Calmar          float64 `json:"calmar"`
}

// MaxDrawdown is the largest peak-to-trough fall of values.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak, dd := values[0], 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak-v > dd {
			dd = peak - v
		}
	}
	return dd
}

// Compute derives the performance ratios from history, using per-sample
// equity returns. Histories shorter than two samples or spanning no time
// give zero ratios.
func Compute(history []lifecycle.EquityPoint, riskFreeRate float64) Stats {
	st := Stats{Samples: len(history)}
	pct := make([]float64, len(history))
	for i, p := range history {
		pct[i] = p.ReturnPct
	}
	st.MaxDrawdown = MaxDrawdown(pct)
	if len(history) < 2 {
		return st.finite()
	}
	days := history[len(history)-1].Time.Sub(history[0].Time).Hours() / 24
	if days <= 0 {
		return st
	}

	rets := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Equity
		if prev <= 0 {
			continue
		}
		rets = append(rets, history[i].Equity/prev-1)
	}
	if len(rets) == 0 {
		return st
	}

	rf := math.Pow(1+riskFreeRate, 1.0/TradingDaysPerYear) - 1
	excess := make([]float64, len(rets))
	var downside []float64
	growth := 1.0
	for i, r := range rets {
		excess[i] = r - rf
		if excess[i] < 0 {
			downside = append(downside, excess[i])
		}
		growth *= 1 + r
	}

	std := stddev(rets)
	st.DailyVolatility = std
	if std > 0 {
		st.Sharpe = mean(excess) / std
	}
	// A wiped-out account compounds to a total loss.
	st.DailyReturn = -1
	if growth > 0 {
		st.DailyReturn = math.Pow(growth, 1/days) - 1
	}
	if dv := stddev(downside); dv > 0 {
		st.Sortino = (st.DailyReturn - rf) / dv
	}
	if st.MaxDrawdown > 0 {
		st.Calmar = st.DailyReturn / (st.MaxDrawdown / 100)
	}
	return st.finite()
}

// finite zeroes any ratio that is not a real number so the view always
// encodes as JSON.
func (st Stats) finite() Stats {
	for _, f := range []*float64{&st.MaxDrawdown, &st.DailyReturn, &st.DailyVolatility, &st.Sharpe, &st.Sortino, &st.Calmar} {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
	return st
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// stddev is the sample standard deviation; fewer than two values give 0.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
