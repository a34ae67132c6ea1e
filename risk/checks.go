package risk

import (
	"fmt"

	"github.com/rustyeddy/fxpilot/signals"
)

type Violation struct {
	Code string
	Msg  string
}

// Check reports why a plan must not be sent to the broker. An empty result
// means the plan is sendable.
func Check(p Plan) []Violation {
	var v []Violation
	add := func(code, msg string) { v = append(v, Violation{Code: code, Msg: msg}) }

	if p.Size == 0 {
		add("NO_UNITS", "zero units")
		return v
	}
	if p.Price <= 0 || p.StopPrice <= 0 || p.TargetPrice <= 0 {
		add("NO_LEVELS", "price, stop and target must be set")
		return v
	}
	switch {
	case p.Direction == signals.Buy && p.Size < 0, p.Direction == signals.Sell && p.Size > 0:
		add("SIGN_MISMATCH", fmt.Sprintf("%s plan with size %v", p.Direction, p.Size))
	case p.Size > 0 && !(p.StopPrice < p.Price && p.Price < p.TargetPrice):
		add("BAD_LEVELS", fmt.Sprintf("long needs stop %v < price %v < target %v", p.StopPrice, p.Price, p.TargetPrice))
	case p.Size < 0 && !(p.TargetPrice < p.Price && p.Price < p.StopPrice):
		add("BAD_LEVELS", fmt.Sprintf("short needs target %v < price %v < stop %v", p.TargetPrice, p.Price, p.StopPrice))
	}
	return v
}
