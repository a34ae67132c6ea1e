package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
)

type priceDetails struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce,omitempty"`
}

type clientExtensions struct {
	ID  string `json:"id,omitempty"`
	Tag string `json:"tag,omitempty"`
}

type marketOrder struct {
	Type             string            `json:"type"`
	Instrument       string            `json:"instrument"`
	Units            string            `json:"units"`
	TimeInForce      string            `json:"timeInForce"`
	PositionFill     string            `json:"positionFill"`
	TakeProfitOnFill *priceDetails     `json:"takeProfitOnFill,omitempty"`
	StopLossOnFill   *priceDetails     `json:"stopLossOnFill,omitempty"`
	ClientExtensions *clientExtensions `json:"clientExtensions,omitempty"`
}

type orderRequest struct {
	Order marketOrder `json:"order"`
}

type tradeOpened struct {
	TradeID string `json:"tradeID"`
	Units   string `json:"units"`
	Price   string `json:"price"`
}

type tradeReduced struct {
	TradeID    string `json:"tradeID"`
	Units      string `json:"units"`
	Price      string `json:"price"`
	RealizedPL string `json:"realizedPL"`
}

type transaction struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	OrderID      string         `json:"orderID"`
	Instrument   string         `json:"instrument"`
	Units        string         `json:"units"`
	Price        string         `json:"price"`
	PL           string         `json:"pl"`
	Reason       string         `json:"reason"`
	RejectReason string         `json:"rejectReason"`
	TradeOpened  *tradeOpened   `json:"tradeOpened"`
	TradesClosed []tradeReduced `json:"tradesClosed"`
	TradeReduced *tradeReduced  `json:"tradeReduced"`
}

type orderResponse struct {
	OrderCreateTransaction *transaction `json:"orderCreateTransaction"`
	OrderFillTransaction   *transaction `json:"orderFillTransaction"`
	OrderCancelTransaction *transaction `json:"orderCancelTransaction"`
	OrderRejectTransaction *transaction `json:"orderRejectTransaction"`
	ErrorCode              string       `json:"errorCode"`
	ErrorMessage           string       `json:"errorMessage"`
}

type positionCloseResponse struct {
	LongOrderFillTransaction    *transaction `json:"longOrderFillTransaction"`
	ShortOrderFillTransaction   *transaction `json:"shortOrderFillTransaction"`
	LongOrderCancelTransaction  *transaction `json:"longOrderCancelTransaction"`
	ShortOrderCancelTransaction *transaction `json:"shortOrderCancelTransaction"`
	LongOrderRejectTransaction  *transaction `json:"longOrderRejectTransaction"`
	ShortOrderRejectTransaction *transaction `json:"shortOrderRejectTransaction"`
	ErrorCode                   string       `json:"errorCode"`
	ErrorMessage                string       `json:"errorMessage"`
}

// CreateMarketOrder places a fill-or-kill market order with the exit levels
// attached on fill. Units are signed; negative sells.
func (c *Client) CreateMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	order := marketOrder{
		Type:             "MARKET",
		Instrument:       req.Instrument,
		Units:            market.FormatUnits(req.Units),
		TimeInForce:      "FOK",
		PositionFill:     "DEFAULT",
		ClientExtensions: &clientExtensions{ID: clientID, Tag: "fxpilot"},
	}
	if req.TakeProfit != nil {
		order.TakeProfitOnFill = &priceDetails{Price: market.FormatPrice(req.Instrument, *req.TakeProfit), TimeInForce: "GTC"}
	}
	if req.StopLoss != nil {
		order.StopLossOnFill = &priceDetails{Price: market.FormatPrice(req.Instrument, *req.StopLoss), TimeInForce: "GTC"}
	}

	r, err := c.request(ctx)
	if err != nil {
		return broker.OrderFill{}, err
	}
	resp, err := r.SetBody(orderRequest{Order: order}).Post("/v3/accounts/{accountID}/orders")
	if err != nil {
		return broker.OrderFill{}, fmt.Errorf("oanda: create order %s: %w", req.Instrument, err)
	}

	var body orderResponse
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return broker.OrderFill{}, fmt.Errorf("oanda: decode order %s: %w", req.Instrument, err)
		}
	}

	if reason := rejection(body.OrderRejectTransaction, body.OrderCancelTransaction); reason != "" {
		return broker.OrderFill{}, &broker.RejectError{Instrument: req.Instrument, Reason: reason}
	}
	if resp.IsError() {
		if resp.StatusCode() >= http.StatusBadRequest && resp.StatusCode() < http.StatusInternalServerError && body.ErrorMessage != "" {
			return broker.OrderFill{}, &broker.RejectError{Instrument: req.Instrument, Reason: body.ErrorMessage}
		}
		return broker.OrderFill{}, check("create order", resp, nil)
	}

	fill := body.OrderFillTransaction
	if fill == nil {
		return broker.OrderFill{}, &broker.RejectError{Instrument: req.Instrument, Reason: "no fill transaction"}
	}
	out := broker.OrderFill{OrderID: fill.OrderID, Instrument: req.Instrument, Units: req.Units}
	if fill.Price != "" {
		if out.Price, err = market.ParseDecimal(fill.Price); err != nil {
			return broker.OrderFill{}, fmt.Errorf("oanda: parse fill price: %w", err)
		}
	}
	if fill.TradeOpened != nil {
		out.TradeID = fill.TradeOpened.TradeID
	}
	c.log.Debug("order filled",
		zap.String("instrument", req.Instrument),
		zap.String("units", order.Units),
		zap.String("client_id", clientID),
		zap.String("trade_id", out.TradeID))
	return out, nil
}

// ClosePosition closes whichever side of instrument is open.
func (c *Client) ClosePosition(ctx context.Context, instrument string) ([]broker.CloseFill, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var pos positionResponse
	resp, err := r.SetPathParam("instrument", instrument).
		SetResult(&pos).
		Get("/v3/accounts/{accountID}/positions/{instrument}")
	if err != nil {
		return nil, fmt.Errorf("oanda: position %s: %w", instrument, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("oanda: %s: %w", instrument, broker.ErrNoPosition)
	}
	if err := check("position "+instrument, resp, nil); err != nil {
		return nil, err
	}

	sides, err := convertPosition(pos.Position)
	if err != nil {
		return nil, err
	}
	if len(sides) == 0 {
		return nil, fmt.Errorf("oanda: %s: %w", instrument, broker.ErrNoPosition)
	}

	payload := map[string]string{}
	for _, s := range sides {
		if s.Side == broker.Long {
			payload["longUnits"] = "ALL"
		} else {
			payload["shortUnits"] = "ALL"
		}
	}

	r, err = c.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err = r.SetPathParam("instrument", instrument).
		SetBody(payload).
		Put("/v3/accounts/{accountID}/positions/{instrument}/close")
	if err != nil {
		return nil, fmt.Errorf("oanda: close position %s: %w", instrument, err)
	}

	var body positionCloseResponse
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return nil, fmt.Errorf("oanda: decode close %s: %w", instrument, err)
		}
	}
	if reason := rejection(body.LongOrderRejectTransaction, body.LongOrderCancelTransaction,
		body.ShortOrderRejectTransaction, body.ShortOrderCancelTransaction); reason != "" {
		return nil, &broker.RejectError{Instrument: instrument, Reason: reason}
	}
	if err := check("close position "+instrument, resp, nil); err != nil {
		return nil, err
	}

	var fills []broker.CloseFill
	for _, tx := range []*transaction{body.LongOrderFillTransaction, body.ShortOrderFillTransaction} {
		f, err := closeFills(instrument, tx)
		if err != nil {
			return fills, err
		}
		fills = append(fills, f...)
	}
	return fills, nil
}

type apiTrade struct {
	ID           string `json:"id"`
	Instrument   string `json:"instrument"`
	CurrentUnits string `json:"currentUnits"`
	Price        string `json:"price"`
}

type tradesResponse struct {
	Trades []apiTrade `json:"trades"`
}

// CloseAll closes every open trade one by one. Failures do not stop the
// sweep; they are aggregated into the returned error.
func (c *Client) CloseAll(ctx context.Context) ([]broker.CloseFill, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var open tradesResponse
	resp, err := r.SetResult(&open).Get("/v3/accounts/{accountID}/openTrades")
	if err := check("open trades", resp, err); err != nil {
		return nil, err
	}

	var (
		fills []broker.CloseFill
		errs  error
	)
	for _, t := range open.Trades {
		f, err := c.closeTrade(ctx, t)
		if err != nil {
			c.log.Warn("trade close failed",
				zap.String("instrument", t.Instrument),
				zap.String("trade_id", t.ID),
				zap.String("action", "close_trade"),
				zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		fills = append(fills, f...)
	}
	return fills, errs
}

func (c *Client) closeTrade(ctx context.Context, t apiTrade) ([]broker.CloseFill, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := r.SetPathParam("tradeID", t.ID).
		SetBody(map[string]string{"units": "ALL"}).
		Put("/v3/accounts/{accountID}/trades/{tradeID}/close")
	if err != nil {
		return nil, fmt.Errorf("oanda: close trade %s: %w", t.ID, err)
	}
	var body orderResponse
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return nil, fmt.Errorf("oanda: decode trade close %s: %w", t.ID, err)
		}
	}
	if reason := rejection(body.OrderRejectTransaction, body.OrderCancelTransaction); reason != "" {
		return nil, &broker.RejectError{Instrument: t.Instrument, Reason: reason}
	}
	if err := check("close trade "+t.ID, resp, nil); err != nil {
		return nil, err
	}
	return closeFills(t.Instrument, body.OrderFillTransaction)
}

// closeFills turns a fill transaction into per-trade close fills.
func closeFills(instrument string, tx *transaction) ([]broker.CloseFill, error) {
	if tx == nil {
		return nil, nil
	}
	price, err := optDecimal(tx.Price)
	if err != nil {
		return nil, fmt.Errorf("oanda: parse close price: %w", err)
	}
	reduced := tx.TradesClosed
	if tx.TradeReduced != nil {
		reduced = append(reduced, *tx.TradeReduced)
	}
	if len(reduced) == 0 {
		units, err := optDecimal(tx.Units)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse close units: %w", err)
		}
		pl, err := optDecimal(tx.PL)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse close pl: %w", err)
		}
		return []broker.CloseFill{{Instrument: instrument, Units: units, Price: price, RealizedPL: pl}}, nil
	}

	out := make([]broker.CloseFill, 0, len(reduced))
	for _, tr := range reduced {
		units, err := optDecimal(tr.Units)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse trade %s units: %w", tr.TradeID, err)
		}
		pl, err := optDecimal(tr.RealizedPL)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse trade %s pl: %w", tr.TradeID, err)
		}
		p := price
		if tr.Price != "" {
			if p, err = market.ParseDecimal(tr.Price); err != nil {
				return nil, fmt.Errorf("oanda: parse trade %s price: %w", tr.TradeID, err)
			}
		}
		out = append(out, broker.CloseFill{
			TradeID:    tr.TradeID,
			Instrument: instrument,
			Units:      units,
			Price:      p,
			RealizedPL: pl,
		})
	}
	return out, nil
}

// rejection returns the first reject or cancel reason among txs.
func rejection(txs ...*transaction) string {
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		if tx.RejectReason != "" {
			return tx.RejectReason
		}
		if tx.Reason != "" {
			return tx.Reason
		}
		return "rejected"
	}
	return ""
}

func optDecimal(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return market.ParseDecimal(s)
}
