package risk

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PlannedRisk is the account-currency loss if the stop is hit.
func PlannedRisk(units, entry, stop, quoteToAccountRate float64) float64 {
	return abs(units) * abs(entry-stop) * quoteToAccountRate
}

// RR is the reward-to-risk ratio of a bracket.
func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}
