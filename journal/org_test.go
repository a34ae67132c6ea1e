package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCloseOrg(t *testing.T) {
	t.Parallel()

	c := CloseRecord{
		ID:          "01HV8ZK3AB-close",
		Time:        time.Date(2024, 3, 15, 14, 20, 30, 0, time.UTC),
		Instrument:  "EUR_USD",
		TradeID:     "T42",
		Units:       1000,
		ExitPrice:   1.08750,
		StopPrice:   1.07415,
		TargetPrice: 1.09585,
		RealizedPL:  -25,
		Reason:      "account_stop",
	}

	result := FormatCloseOrg(c)

	assert.True(t, strings.HasPrefix(result, "** Close: EUR_USD (01HV8ZK3)\n"))
	assert.Contains(t, result, ":ID: 01HV8ZK3AB-close")
	assert.Contains(t, result, ":TRADE_ID: T42")
	assert.Contains(t, result, ":UNITS: 1000")
	assert.Contains(t, result, ":EXIT_PRICE: 1.08750")
	assert.Contains(t, result, ":CLOSE_TIME: 2024-03-15T14:20:30Z")
	assert.Contains(t, result, ":REALIZED_PL: -25.00")
	assert.Contains(t, result, ":REASON: account_stop")
	assert.Contains(t, result, "*** Review")
}

func TestFormatClosesOrg(t *testing.T) {
	t.Parallel()

	out := FormatClosesOrg([]CloseRecord{
		{ID: "a", Instrument: "EUR_USD"},
		{ID: "b", Instrument: "GBP_USD"},
	})
	assert.Equal(t, 2, strings.Count(out, "** Close:"))
	assert.Contains(t, out, ":END:\n\n*** Execution\n- \n\n*** Review\n- \n\n\n** Close: GBP_USD (b)")

	assert.Equal(t, "", FormatClosesOrg(nil))
}

func TestShortID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input, expected string
	}{
		{"trade-12345678-abcdef", "trade-12"},
		{"12345678", "12345678"},
		{"short", "short"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, shortID(tt.input))
	}
}
