// Package oanda is the OANDA v20 REST gateway.
package oanda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/fxpilot/broker"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"
)

// BaseURL maps an environment name to its REST endpoint.
func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "practice", "demo":
		return PracticeURL, nil
	case "live", "trade":
		return LiveURL, nil
	default:
		return "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
	}
}

type Options struct {
	Environment string
	// BaseURL overrides Environment when set (tests point it at httptest).
	BaseURL           string
	AccountID         string
	Token             string
	RequestsPerSecond float64
	Timeout           time.Duration
	Logger            *zap.Logger
}

// Client talks to one OANDA account.
type Client struct {
	rc        *resty.Client
	accountID string
	limiter   *rate.Limiter
	log       *zap.Logger
}

var (
	_ broker.Broker       = (*Client)(nil)
	_ broker.CandleSource = (*Client)(nil)
)

func New(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, errors.New("oanda: missing token")
	}
	if opts.AccountID == "" {
		return nil, errors.New("oanda: missing account id")
	}
	base := opts.BaseURL
	if base == "" {
		var err error
		if base, err = BaseURL(opts.Environment); err != nil {
			return nil, err
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetAuthToken(opts.Token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept-Datetime-Format", "RFC3339").
		SetTimeout(timeout)

	return &Client{
		rc:        rc,
		accountID: opts.AccountID,
		limiter:   rate.NewLimiter(limit, burst),
		log:       log.Named("oanda"),
	}, nil
}

// apiError is the body OANDA sends with 4xx/5xx responses.
type apiError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// StatusError is a non-2xx response that is not an order rejection.
type StatusError struct {
	Action  string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("oanda: %s: status %d %s: %s", e.Action, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("oanda: %s: status %d: %s", e.Action, e.Status, e.Message)
}

// request waits for a rate-limit token and returns a request bound to ctx
// with the account path parameter filled in.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.rc.R().
		SetContext(ctx).
		SetPathParam("accountID", c.accountID).
		ForceContentType("application/json").
		SetError(&apiError{}), nil
}

func check(action string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("oanda: %s: %w", action, err)
	}
	if !resp.IsError() {
		return nil
	}
	se := &StatusError{Action: action, Status: resp.StatusCode(), Message: string(resp.Body())}
	if ae, ok := resp.Error().(*apiError); ok && ae.ErrorMessage != "" {
		se.Code = ae.ErrorCode
		se.Message = ae.ErrorMessage
	}
	return se
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
