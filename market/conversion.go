package market

import "fmt"

// QuoteToAccountRate returns the factor converting an amount in the
// instrument's quote currency into the account currency.
func QuoteToAccountRate(instrument, accountCurrency string, quotes *QuoteStore) (float64, error) {
	meta, _ := Lookup(instrument)

	// EUR_USD, GBP_USD, ... in a USD account
	if meta.QuoteCurrency == accountCurrency {
		return 1.0, nil
	}

	// USD_JPY, USD_CAD, ...: quote per account unit, invert the mid
	if meta.BaseCurrency == accountCurrency {
		q, err := quotes.Get(instrument)
		if err != nil {
			return 0, err
		}
		if q.Mid() == 0 {
			return 0, fmt.Errorf("zero mid for %s", instrument)
		}
		return 1.0 / q.Mid(), nil
	}

	return 0, fmt.Errorf("cross conversion not implemented for %s -> %s", meta.QuoteCurrency, accountCurrency)
}
