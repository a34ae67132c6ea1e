package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/monitor"
	"github.com/rustyeddy/fxpilot/notify"
	"github.com/rustyeddy/fxpilot/risk"
	"github.com/rustyeddy/fxpilot/signals"
)

// Config is the complete fxpilot configuration.
type Config struct {
	Broker      BrokerConfig     `json:"broker" yaml:"broker"`
	Instruments []string         `json:"instruments" yaml:"instruments"`
	Signals     SignalsConfig    `json:"signals" yaml:"signals"`
	Allocation  AllocationConfig `json:"allocation" yaml:"allocation"`
	Lifecycle   LifecycleConfig  `json:"lifecycle" yaml:"lifecycle"`
	Journal     JournalConfig    `json:"journal" yaml:"journal"`
	Dashboard   DashboardConfig  `json:"dashboard" yaml:"dashboard"`
	Notify      NotifyConfig     `json:"notify" yaml:"notify"`
	Log         LogConfig        `json:"log" yaml:"log"`
}

// BrokerConfig selects the gateway. Kind "paper" fills orders locally but
// still reads prices and candles from OANDA when a token is set.
type BrokerConfig struct {
	Kind              string      `json:"kind" yaml:"kind"`               // "oanda" or "paper"
	Environment       string      `json:"environment" yaml:"environment"` // "practice" or "live"
	AccountID         string      `json:"account_id" yaml:"account_id"`
	Token             string      `json:"token,omitempty" yaml:"token,omitempty"`
	Timeout           string      `json:"timeout" yaml:"timeout"` // per call, e.g. "10s"
	RequestsPerSecond float64     `json:"requests_per_second" yaml:"requests_per_second"`
	Paper             PaperConfig `json:"paper" yaml:"paper"`
}

type PaperConfig struct {
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
	// Quotes seed the paper book when no OANDA token is available.
	Quotes map[string]QuoteSeed `json:"quotes,omitempty" yaml:"quotes,omitempty"`
}

type QuoteSeed struct {
	Bid float64 `json:"bid" yaml:"bid"`
	Ask float64 `json:"ask" yaml:"ask"`
}

// SignalsConfig selects the signal source. Static serves fixed signals
// from the Static table.
type SignalsConfig struct {
	Kind        string                  `json:"kind" yaml:"kind"` // "marsi" or "static"
	Granularity string                  `json:"granularity" yaml:"granularity"`
	Lookback    int                     `json:"lookback" yaml:"lookback"`
	ShortPeriod int                     `json:"short_period" yaml:"short_period"`
	LongPeriod  int                     `json:"long_period" yaml:"long_period"`
	RSIPeriod   int                     `json:"rsi_period" yaml:"rsi_period"`
	Overbought  float64                 `json:"overbought" yaml:"overbought"`
	RSIEngine   string                  `json:"rsi_engine" yaml:"rsi_engine"` // "simple" or "goti"
	Static      map[string]StaticSignal `json:"static,omitempty" yaml:"static,omitempty"`
}

type StaticSignal struct {
	Direction string  `json:"direction" yaml:"direction"`
	Strength  float64 `json:"strength" yaml:"strength"`
}

type AllocationConfig struct {
	Baseline       float64 `json:"baseline" yaml:"baseline"`
	WeightExponent float64 `json:"weight_exponent" yaml:"weight_exponent"`
	TargetMargin   float64 `json:"target_margin" yaml:"target_margin"`
	StopMargin     float64 `json:"stop_margin" yaml:"stop_margin"`
}

type LifecycleConfig struct {
	PollInterval string            `json:"poll_interval" yaml:"poll_interval"`
	SettleDelay  string            `json:"settle_delay" yaml:"settle_delay"`
	ExitMode     string            `json:"exit_mode" yaml:"exit_mode"` // "bracket" or "account"
	AccountExit  AccountExitConfig `json:"account_exit" yaml:"account_exit"`
}

type AccountExitConfig struct {
	StopLoss   float64 `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit float64 `json:"take_profit" yaml:"take_profit"`
}

type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	// Path is a directory for csv and a database file for sqlite.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type DashboardConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Addr         string  `json:"addr" yaml:"addr"`
	PollInterval string  `json:"poll_interval" yaml:"poll_interval"`
	History      int     `json:"history" yaml:"history"`
	RiskFreeRate float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
}

type NotifyConfig struct {
	DiscordWebhook string            `json:"discord_webhook,omitempty" yaml:"discord_webhook,omitempty"`
	SlackWebhook   string            `json:"slack_webhook,omitempty" yaml:"slack_webhook,omitempty"`
	SMTP           notify.SMTPConfig `json:"smtp" yaml:"smtp"`
	Timeout        string            `json:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level    string `json:"level" yaml:"level"`       // debug|info|warn|error
	Encoding string `json:"encoding" yaml:"encoding"` // console|json
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON),
// applies environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := base()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = base()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides secrets and account settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("OANDA_TOKEN", &c.Broker.Token)
	set("OANDA_ACCOUNT_ID", &c.Broker.AccountID)
	set("OANDA_ENV", &c.Broker.Environment)
	set("FXPILOT_DISCORD_WEBHOOK", &c.Notify.DiscordWebhook)
	set("FXPILOT_SLACK_WEBHOOK", &c.Notify.SlackWebhook)
	set("FXPILOT_SMTP_PASSWORD", &c.Notify.SMTP.Password)
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Broker.Kind {
	case "oanda":
		if c.Broker.Token == "" {
			return fmt.Errorf("broker.token is required (or set OANDA_TOKEN)")
		}
		if c.Broker.AccountID == "" {
			return fmt.Errorf("broker.account_id is required (or set OANDA_ACCOUNT_ID)")
		}
	case "paper":
		if c.Broker.Paper.Currency == "" {
			return fmt.Errorf("broker.paper.currency is required")
		}
		if c.Broker.Paper.Balance <= 0 {
			return fmt.Errorf("broker.paper.balance must be positive")
		}
		for inst, q := range c.Broker.Paper.Quotes {
			if q.Bid <= 0 || q.Ask < q.Bid {
				return fmt.Errorf("broker.paper.quotes.%s: need 0 < bid <= ask", inst)
			}
		}
		if c.Broker.Token == "" && c.Signals.Kind == "marsi" {
			return fmt.Errorf("marsi signals need OANDA candles: set broker.token (or OANDA_TOKEN) or use static signals")
		}
	default:
		return fmt.Errorf("broker.kind must be 'oanda' or 'paper'")
	}
	switch c.Broker.Environment {
	case "", "practice", "live":
	default:
		return fmt.Errorf("broker.environment must be 'practice' or 'live'")
	}
	if _, err := c.Broker.CallTimeout(); err != nil {
		return err
	}
	if c.Broker.RequestsPerSecond < 0 {
		return fmt.Errorf("broker.requests_per_second must not be negative")
	}

	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments: at least one is required")
	}
	seen := map[string]bool{}
	for _, inst := range c.Instruments {
		if _, ok := market.Instruments[inst]; !ok {
			return fmt.Errorf("unknown instrument: %s", inst)
		}
		if seen[inst] {
			return fmt.Errorf("duplicate instrument: %s", inst)
		}
		seen[inst] = true
	}

	switch c.Signals.Kind {
	case "marsi":
		if err := c.Signals.MARSI().Validate(); err != nil {
			return fmt.Errorf("signals: %w", err)
		}
	case "static":
		if _, err := c.Signals.StaticSet(); err != nil {
			return fmt.Errorf("signals: %w", err)
		}
	default:
		return fmt.Errorf("signals.kind must be 'marsi' or 'static'")
	}

	if err := c.Allocation.Params().Validate(); err != nil {
		return fmt.Errorf("allocation: %w", err)
	}

	if d, err := parsePositive("lifecycle.poll_interval", c.Lifecycle.PollInterval); err != nil {
		return err
	} else if d < time.Second {
		return fmt.Errorf("lifecycle.poll_interval must be at least 1s")
	}
	if _, err := parseDuration("lifecycle.settle_delay", c.Lifecycle.SettleDelay); err != nil {
		return err
	}
	mode, err := monitor.ParseExitMode(c.Lifecycle.ExitMode)
	if err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}
	if mode == monitor.AccountMode {
		if err := c.Lifecycle.Exit().Validate(); err != nil {
			return fmt.Errorf("lifecycle: %w", err)
		}
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv", "sqlite":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for %s journal", c.Journal.Type)
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Dashboard.Enabled {
		if c.Dashboard.Addr == "" {
			return fmt.Errorf("dashboard.addr is required")
		}
		if _, err := parsePositive("dashboard.poll_interval", c.Dashboard.PollInterval); err != nil {
			return err
		}
		if c.Dashboard.History <= 0 {
			return fmt.Errorf("dashboard.history must be positive")
		}
	}

	if _, err := parseDuration("notify.timeout", c.Notify.Timeout); err != nil {
		return err
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	switch c.Log.Encoding {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.encoding must be 'console' or 'json'")
	}
	return nil
}

// CallTimeout is the per-call broker deadline; empty means none.
func (b BrokerConfig) CallTimeout() (time.Duration, error) {
	return parseDuration("broker.timeout", b.Timeout)
}

// MARSI converts the section for signals.NewMARSI.
func (s SignalsConfig) MARSI() signals.MARSIConfig {
	return signals.MARSIConfig{
		Granularity: s.Granularity,
		Lookback:    s.Lookback,
		ShortPeriod: s.ShortPeriod,
		LongPeriod:  s.LongPeriod,
		RSIPeriod:   s.RSIPeriod,
		Overbought:  s.Overbought,
		RSIEngine:   s.RSIEngine,
	}
}

// StaticSet parses the static signal table.
func (s SignalsConfig) StaticSet() (signals.Static, error) {
	keys := make([]string, 0, len(s.Static))
	for k := range s.Static {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(signals.Static, len(keys))
	for _, inst := range keys {
		dir, err := signals.ParseDirection(s.Static[inst].Direction)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", inst, err)
		}
		out[inst] = signals.Signal{Instrument: inst, Direction: dir, Strength: s.Static[inst].Strength}
	}
	return out, nil
}

func (a AllocationConfig) Params() risk.Params {
	return risk.Params{
		Baseline:       a.Baseline,
		WeightExponent: a.WeightExponent,
		TargetMargin:   a.TargetMargin,
		StopMargin:     a.StopMargin,
	}
}

func (l LifecycleConfig) Exit() monitor.AccountExit {
	return monitor.AccountExit{StopLoss: l.AccountExit.StopLoss, TakeProfit: l.AccountExit.TakeProfit}
}

// Intervals returns the parsed poll interval and settle delay. Call after
// Validate.
func (l LifecycleConfig) Intervals() (poll, settle time.Duration) {
	poll, _ = time.ParseDuration(l.PollInterval)
	settle, _ = parseDuration("", l.SettleDelay)
	return poll, settle
}

// Interval returns the parsed poll interval. Call after Validate.
func (d DashboardConfig) Interval() time.Duration {
	v, _ := time.ParseDuration(d.PollInterval)
	return v
}

// NotifyTimeout returns the delivery timeout; empty means 10s.
func (n NotifyConfig) NotifyTimeout() time.Duration {
	v, _ := parseDuration("", n.Timeout)
	if v == 0 {
		return 10 * time.Second
	}
	return v
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

func parsePositive(field, s string) (time.Duration, error) {
	d, err := parseDuration(field, s)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("%s is required", field)
	}
	return d, nil
}

// base is Default without its demo tables, so a loaded file's maps are not
// merged with them.
func base() *Config {
	c := Default()
	c.Signals.Static = nil
	c.Broker.Paper.Quotes = nil
	return c
}

// Default returns an offline paper-trading demo: static signals over seeded
// quotes, with the MA/RSI settings ready for kind "marsi".
func Default() *Config {
	ms := signals.DefaultMARSIConfig()
	rp := risk.DefaultParams()
	ax := monitor.DefaultAccountExit()
	return &Config{
		Broker: BrokerConfig{
			Kind:              "paper",
			Environment:       "practice",
			Timeout:           "10s",
			RequestsPerSecond: 20,
			Paper: PaperConfig{
				Currency: "USD",
				Balance:  100000,
				Quotes: map[string]QuoteSeed{
					"EUR_USD": {Bid: 1.0849, Ask: 1.0851},
					"GBP_USD": {Bid: 1.2649, Ask: 1.2652},
					"USD_JPY": {Bid: 149.50, Ask: 149.52},
					"AUD_USD": {Bid: 0.6549, Ask: 0.6551},
				},
			},
		},
		Instruments: []string{"EUR_USD", "GBP_USD", "USD_JPY", "AUD_USD"},
		Signals: SignalsConfig{
			Kind:        "static",
			Granularity: ms.Granularity,
			Lookback:    ms.Lookback,
			ShortPeriod: ms.ShortPeriod,
			LongPeriod:  ms.LongPeriod,
			RSIPeriod:   ms.RSIPeriod,
			Overbought:  ms.Overbought,
			RSIEngine:   ms.RSIEngine,
			Static: map[string]StaticSignal{
				"EUR_USD": {Direction: "BUY", Strength: 65},
				"GBP_USD": {Direction: "SELL", Strength: 45},
			},
		},
		Allocation: AllocationConfig{
			Baseline:       rp.Baseline,
			WeightExponent: rp.WeightExponent,
			TargetMargin:   rp.TargetMargin,
			StopMargin:     rp.StopMargin,
		},
		Lifecycle: LifecycleConfig{
			PollInterval: "5s",
			SettleDelay:  "3s",
			ExitMode:     string(monitor.Bracket),
			AccountExit:  AccountExitConfig{StopLoss: ax.StopLoss, TakeProfit: ax.TakeProfit},
		},
		Journal: JournalConfig{
			Type: "sqlite",
			Path: "./fxpilot.db",
		},
		Dashboard: DashboardConfig{
			Enabled:      true,
			Addr:         "127.0.0.1:8050",
			PollInterval: "5s",
			History:      10000,
			RiskFreeRate: 0.02,
		},
		Notify: NotifyConfig{
			Timeout: "10s",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}
