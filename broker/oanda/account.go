package oanda

import (
	"context"
	"fmt"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
)

type accountSummary struct {
	ID             string `json:"id"`
	Currency       string `json:"currency"`
	Balance        string `json:"balance"`
	UnrealizedPL   string `json:"unrealizedPL"`
	NAV            string `json:"NAV"`
	MarginUsed     string `json:"marginUsed"`
	OpenTradeCount int    `json:"openTradeCount"`
}

type summaryResponse struct {
	Account accountSummary `json:"account"`
}

func (c *Client) Account(ctx context.Context) (broker.Account, error) {
	req, err := c.request(ctx)
	if err != nil {
		return broker.Account{}, err
	}
	var body summaryResponse
	resp, err := req.SetResult(&body).Get("/v3/accounts/{accountID}/summary")
	if err := check("account summary", resp, err); err != nil {
		return broker.Account{}, err
	}

	a := body.Account
	acct := broker.Account{ID: a.ID, Currency: a.Currency, OpenTrades: a.OpenTradeCount}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"balance", a.Balance, &acct.Balance},
		{"unrealizedPL", a.UnrealizedPL, &acct.UnrealizedPL},
		{"NAV", a.NAV, &acct.NAV},
		{"marginUsed", a.MarginUsed, &acct.MarginUsed},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := market.ParseDecimal(f.raw)
		if err != nil {
			return broker.Account{}, fmt.Errorf("oanda: parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return acct, nil
}

type positionSide struct {
	Units        string `json:"units"`
	AveragePrice string `json:"averagePrice"`
	UnrealizedPL string `json:"unrealizedPL"`
}

type apiPosition struct {
	Instrument string       `json:"instrument"`
	Long       positionSide `json:"long"`
	Short      positionSide `json:"short"`
}

type positionsResponse struct {
	Positions []apiPosition `json:"positions"`
}

type positionResponse struct {
	Position apiPosition `json:"position"`
}

// OpenPositions lists positions with non-zero units. A hedged instrument
// yields one Position per open side.
func (c *Client) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var body positionsResponse
	resp, err := req.SetResult(&body).Get("/v3/accounts/{accountID}/openPositions")
	if err := check("open positions", resp, err); err != nil {
		return nil, err
	}

	var out []broker.Position
	for _, p := range body.Positions {
		sides, err := convertPosition(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sides...)
	}
	return out, nil
}

func convertPosition(p apiPosition) ([]broker.Position, error) {
	var out []broker.Position
	for _, side := range []struct {
		s    broker.Side
		data positionSide
	}{
		{broker.Long, p.Long},
		{broker.Short, p.Short},
	} {
		if side.data.Units == "" {
			continue
		}
		units, err := market.ParseDecimal(side.data.Units)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse %s units: %w", p.Instrument, err)
		}
		if units == 0 {
			continue
		}
		pos := broker.Position{Instrument: p.Instrument, Side: side.s, Units: units}
		if side.data.AveragePrice != "" {
			if pos.AveragePrice, err = market.ParseDecimal(side.data.AveragePrice); err != nil {
				return nil, fmt.Errorf("oanda: parse %s average price: %w", p.Instrument, err)
			}
		}
		if side.data.UnrealizedPL != "" {
			if pos.UnrealizedPL, err = market.ParseDecimal(side.data.UnrealizedPL); err != nil {
				return nil, fmt.Errorf("oanda: parse %s unrealizedPL: %w", p.Instrument, err)
			}
		}
		out = append(out, pos)
	}
	return out, nil
}
