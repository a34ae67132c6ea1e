package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfEven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		x      float64
		places int
		want   float64
	}{
		{"half down to even", 2.5, 0, 2},
		{"half up to even", 3.5, 0, 4},
		{"negative half", -2.5, 0, -2},
		{"below half", 2.49, 0, 2},
		{"price half", 1.08345, 4, 1.0834},
		{"price above half", 1.083451, 4, 1.0835},
		{"jpy", 151.235, 2, 151.24},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Round(tt.x, tt.places))
		})
	}
}

func TestRoundPriceUsesInstrumentPrecision(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.1111, RoundPrice("EUR_USD", 1.11111))
	assert.Equal(t, 150.12, RoundPrice("USD_JPY", 150.1234))
	// unregistered pairs fall back to four decimals
	assert.Equal(t, 0.8765, RoundPrice("EUR_GBP", 0.876543))
}

func TestRoundUnits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 9091.0, RoundUnits(9090.909))
	assert.Equal(t, 10.0, RoundUnits(10.5))
	assert.Equal(t, 12.0, RoundUnits(11.5))
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.1000", FormatPrice("EUR_USD", 1.1))
	assert.Equal(t, "150.50", FormatPrice("USD_JPY", 150.5))
	assert.Equal(t, "-9091", FormatUnits(-9090.9))
}

func TestParseDecimal(t *testing.T) {
	t.Parallel()

	f, err := ParseDecimal("1.08345")
	assert.NoError(t, err)
	assert.Equal(t, 1.08345, f)

	_, err = ParseDecimal("abc")
	assert.Error(t, err)
}
