package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/monitor"
	"github.com/rustyeddy/fxpilot/notify"
)

// KillOutcome is what the operator sees after a kill switch.
type KillOutcome struct {
	OK         bool      `json:"ok"`
	Closed     int       `json:"closed"`
	RealizedPL float64   `json:"realized_pl"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Kill closes everything at the broker and resets local state whatever the
// broker answered. It interrupts a running cycle and waits for it to finish,
// so it never interleaves with one. Calling it with nothing open succeeds.
func (c *Controller) Kill(ctx context.Context) KillOutcome {
	c.interrupt()
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	c.log.Warn("kill switch triggered", zap.String("phase", string(c.store.Phase())))
	params := c.store.Params()
	fills, err := c.b.CloseAll(ctx)
	c.mon.RecordFills(fills, params, monitor.ReasonKillSwitch)

	out := KillOutcome{OK: err == nil, Closed: len(fills), Time: c.now()}
	for _, f := range fills {
		out.RealizedPL += f.RealizedPL
	}
	if err != nil {
		out.Error = err.Error()
	}

	var bal float64
	if acct, aerr := c.b.Account(ctx); aerr == nil {
		bal = acct.Balance
	}
	c.store.ResetFlat(bal)
	c.store.setLastKill(out)

	c.metrics.Kill(out.OK)
	c.metrics.Phase(false)
	c.metrics.OpenTradeParams(0)
	if jerr := c.journal.RecordKill(journal.KillRecord{
		Time:       out.Time,
		OK:         out.OK,
		Closed:     out.Closed,
		RealizedPL: out.RealizedPL,
		Error:      out.Error,
	}); jerr != nil {
		c.log.Warn("journal write failed", zap.String("action", "kill"), zap.Error(jerr))
	}

	msg := notify.Message{
		Title: "Kill switch: all trades closed",
		Body:  fmt.Sprintf("Closed %d trade(s), realized P/L %.2f.", out.Closed, out.RealizedPL),
		Level: notify.Warn,
		Time:  out.Time,
	}
	if !out.OK {
		c.log.Error("kill switch close failed", zap.String("action", "close_all"), zap.Int("closed", out.Closed), zap.Error(err))
		msg.Title = "Kill switch: close failed"
		msg.Body = fmt.Sprintf("Closed %d trade(s) before failing: %s. Local state was reset; check the account.", out.Closed, out.Error)
		msg.Level = notify.Alert
	} else {
		c.log.Info("kill switch done", zap.Int("closed", out.Closed), zap.Float64("realized_pl", out.RealizedPL))
	}
	if nerr := c.notifier.Notify(ctx, msg); nerr != nil {
		c.log.Warn("operator notification failed", zap.Error(nerr))
	}
	return out
}
