package oanda

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rustyeddy/fxpilot/market"
)

// Granularity represents the time frame for candles
type Granularity string

const (
	S5  Granularity = "S5"
	M1  Granularity = "M1"
	M5  Granularity = "M5"
	M15 Granularity = "M15"
	M30 Granularity = "M30"
	H1  Granularity = "H1"
	H4  Granularity = "H4"
	D   Granularity = "D"
)

// PriceComponent represents the price component for candles
type PriceComponent string

const (
	MidPrice PriceComponent = "M"
	BidPrice PriceComponent = "B"
	AskPrice PriceComponent = "A"
)

// MaxCandles is the largest count OANDA serves in one request.
const MaxCandles = 5000

// CandlesRequest represents parameters for fetching historical candles
type CandlesRequest struct {
	Instrument  string
	Price       PriceComponent // default MidPrice
	Granularity Granularity    // default H1
	Count       int
	From        *time.Time
	To          *time.Time
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool        `json:"complete"`
	Volume   int         `json:"volume"`
	Time     string      `json:"time"`
	Mid      *candleData `json:"mid,omitempty"`
	Bid      *candleData `json:"bid,omitempty"`
	Ask      *candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// Candles implements broker.CandleSource with complete mid candles.
func (c *Client) Candles(ctx context.Context, instrument, granularity string, count int) ([]market.Candle, error) {
	return c.GetCandles(ctx, CandlesRequest{
		Instrument:  instrument,
		Price:       MidPrice,
		Granularity: Granularity(granularity),
		Count:       count,
	})
}

// GetCandles fetches historical candles, dropping the incomplete one OANDA
// returns for the current period.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) ([]market.Candle, error) {
	if req.Instrument == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if req.Price == "" {
		req.Price = MidPrice
	}
	if req.Granularity == "" {
		req.Granularity = H1
	}

	params := map[string]string{
		"price":       string(req.Price),
		"granularity": string(req.Granularity),
	}
	if req.Count > 0 {
		if req.Count > MaxCandles {
			return nil, fmt.Errorf("count cannot exceed %d", MaxCandles)
		}
		params["count"] = strconv.Itoa(req.Count)
	} else {
		if req.From != nil {
			params["from"] = req.From.UTC().Format(time.RFC3339)
		}
		if req.To != nil {
			params["to"] = req.To.UTC().Format(time.RFC3339)
		}
	}

	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var body candlesResponse
	resp, err := r.SetPathParam("instrument", req.Instrument).
		SetQueryParams(params).
		SetResult(&body).
		Get("/v3/instruments/{instrument}/candles")
	if err := check("candles "+req.Instrument, resp, err); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(body.Candles))
	for _, ac := range body.Candles {
		if !ac.Complete {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("parse time %s: %w", ac.Time, err)
		}

		var data *candleData
		switch req.Price {
		case BidPrice:
			data = ac.Bid
		case AskPrice:
			data = ac.Ask
		default:
			data = ac.Mid
		}
		if data == nil {
			return nil, fmt.Errorf("candle %s missing %s prices", ac.Time, req.Price)
		}

		var ohlc [4]float64
		for i, s := range []string{data.O, data.H, data.L, data.C} {
			if ohlc[i], err = market.ParseDecimal(s); err != nil {
				return nil, fmt.Errorf("parse candle %s: %w", ac.Time, err)
			}
		}

		candles = append(candles, market.Candle{
			Time:     t.UTC(),
			Open:     ohlc[0],
			High:     ohlc[1],
			Low:      ohlc[2],
			Close:    ohlc[3],
			Volume:   float64(ac.Volume),
			Complete: true,
		})
	}
	return candles, nil
}
