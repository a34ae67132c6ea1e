package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatCloseOrg renders a close as an Org-mode heading with a property
// drawer and empty review sections.
func FormatCloseOrg(c CloseRecord) string {
	heading := fmt.Sprintf("** Close: %s (%s)", c.Instrument, shortID(c.ID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":ID: %s\n", c.ID))
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", c.TradeID))
	b.WriteString(fmt.Sprintf(":INSTRUMENT: %s\n", c.Instrument))
	b.WriteString(fmt.Sprintf(":UNITS: %.0f\n", c.Units))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.5f\n", c.ExitPrice))
	b.WriteString(fmt.Sprintf(":STOP_PRICE: %.5f\n", c.StopPrice))
	b.WriteString(fmt.Sprintf(":TARGET_PRICE: %.5f\n", c.TargetPrice))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", c.Time.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", c.RealizedPL))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", c.Reason))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatClosesOrg renders multiple closes separated by blank lines.
func FormatClosesOrg(closes []CloseRecord) string {
	var b strings.Builder
	for i, c := range closes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatCloseOrg(c))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
