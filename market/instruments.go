// market/instruments.go
package market

import "strings"

// DefaultPrecision is used for instruments missing from the registry.
const DefaultPrecision = 4

// Instrument is static reference data for a tradable pair. It is never
// mutated after registration.
type Instrument struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	// Precision is the number of decimals used when rounding prices
	// (exit levels) for this pair.
	Precision   int
	PipLocation int
}

var Instruments = map[string]Instrument{
	"EUR_USD": {Name: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", Precision: 4, PipLocation: -4},
	"GBP_USD": {Name: "GBP_USD", BaseCurrency: "GBP", QuoteCurrency: "USD", Precision: 4, PipLocation: -4},
	"AUD_USD": {Name: "AUD_USD", BaseCurrency: "AUD", QuoteCurrency: "USD", Precision: 4, PipLocation: -4},
	"NZD_USD": {Name: "NZD_USD", BaseCurrency: "NZD", QuoteCurrency: "USD", Precision: 4, PipLocation: -4},
	"USD_CAD": {Name: "USD_CAD", BaseCurrency: "USD", QuoteCurrency: "CAD", Precision: 4, PipLocation: -4},
	"USD_CHF": {Name: "USD_CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", Precision: 4, PipLocation: -4},
	"USD_JPY": {Name: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", Precision: 2, PipLocation: -2},
	"GBP_JPY": {Name: "GBP_JPY", BaseCurrency: "GBP", QuoteCurrency: "JPY", Precision: 2, PipLocation: -2},
	"EUR_JPY": {Name: "EUR_JPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", Precision: 2, PipLocation: -2},
}

// Lookup returns the registered instrument. Unknown names still get a usable
// Instrument with DefaultPrecision, ok reports whether it was registered.
func Lookup(name string) (Instrument, bool) {
	if inst, ok := Instruments[name]; ok {
		return inst, true
	}
	inst := Instrument{Name: name, Precision: DefaultPrecision, PipLocation: -DefaultPrecision}
	if base, quote, found := strings.Cut(name, "_"); found {
		inst.BaseCurrency = base
		inst.QuoteCurrency = quote
	}
	return inst, false
}

// Precision is shorthand for Lookup(name).Precision.
func Precision(name string) int {
	inst, _ := Lookup(name)
	return inst.Precision
}
