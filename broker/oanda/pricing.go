package oanda

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/fxpilot/market"
)

type priceBucket struct {
	Price string `json:"price"`
}

type clientPrice struct {
	Instrument string        `json:"instrument"`
	Time       string        `json:"time"`
	Tradeable  bool          `json:"tradeable"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`
}

type pricingResponse struct {
	Prices []clientPrice `json:"prices"`
}

// Quotes returns the top-of-book bid/ask for each instrument. Instruments
// the broker does not price are absent from the map.
func (c *Client) Quotes(ctx context.Context, instruments []string) (map[string]market.Quote, error) {
	out := make(map[string]market.Quote, len(instruments))
	if len(instruments) == 0 {
		return out, nil
	}

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var body pricingResponse
	resp, err := req.
		SetQueryParam("instruments", strings.Join(instruments, ",")).
		SetResult(&body).
		Get("/v3/accounts/{accountID}/pricing")
	if err := check("pricing", resp, err); err != nil {
		return nil, err
	}

	for _, p := range body.Prices {
		if len(p.Bids) == 0 || len(p.Asks) == 0 {
			continue
		}
		bid, err := market.ParseDecimal(p.Bids[0].Price)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse bid %s: %w", p.Instrument, err)
		}
		ask, err := market.ParseDecimal(p.Asks[0].Price)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse ask %s: %w", p.Instrument, err)
		}
		out[p.Instrument] = market.Quote{
			Instrument: p.Instrument,
			Bid:        bid,
			Ask:        ask,
			Time:       parseTime(p.Time),
		}
	}
	return out, nil
}
