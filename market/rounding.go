package market

import "github.com/shopspring/decimal"

// All rounding in fxpilot is round-half-to-even. Exit levels and order
// quantities are sent to the broker verbatim, so the mode must never vary
// between call sites.

// Round rounds x to places decimals, half to even.
func Round(x float64, places int) float64 {
	f, _ := decimal.NewFromFloat(x).RoundBank(int32(places)).Float64()
	return f
}

// RoundPrice rounds a price to the instrument's precision.
func RoundPrice(instrument string, price float64) float64 {
	return Round(price, Precision(instrument))
}

// RoundUnits rounds a quantity to whole units.
func RoundUnits(units float64) float64 {
	return Round(units, 0)
}

// FormatPrice renders a price with exactly the instrument's precision, the
// form the broker expects for attached exit levels.
func FormatPrice(instrument string, price float64) string {
	p := int32(Precision(instrument))
	return decimal.NewFromFloat(price).RoundBank(p).StringFixed(p)
}

// FormatUnits renders a signed whole-unit quantity.
func FormatUnits(units float64) string {
	return decimal.NewFromFloat(units).RoundBank(0).String()
}

// ParseDecimal parses a broker decimal string ("1.08345") to float64.
func ParseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
