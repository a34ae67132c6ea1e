package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

var discordColours = map[Level]int{Info: 0x2ecc71, Warn: 0xf1c40f, Alert: 0xe74c3c}

// Discord posts an embed to a Discord webhook.
type Discord struct {
	url string
	rc  *resty.Client
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{url: webhookURL, rc: resty.New().SetTimeout(10 * time.Second)}
}

func (d *Discord) Notify(ctx context.Context, msg Message) error {
	if d.url == "" {
		return nil
	}
	ts := msg.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	payload := map[string]any{
		"embeds": []map[string]any{{
			"title":       msg.Title,
			"description": msg.Body,
			"color":       discordColours[msg.Level],
			"footer":      map[string]string{"text": "fxpilot"},
			"timestamp":   ts.Format(time.RFC3339),
		}},
	}
	return post(ctx, d.rc, d.url, "discord", payload)
}

// Slack posts a text message to a Slack incoming webhook.
type Slack struct {
	url string
	rc  *resty.Client
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{url: webhookURL, rc: resty.New().SetTimeout(10 * time.Second)}
}

func (s *Slack) Notify(ctx context.Context, msg Message) error {
	if s.url == "" {
		return nil
	}
	text := fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)
	return post(ctx, s.rc, s.url, "slack", map[string]string{"text": text})
}

func post(ctx context.Context, rc *resty.Client, url, channel string, payload any) error {
	resp, err := rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("%s webhook: %w", channel, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s webhook returned status %d", channel, resp.StatusCode())
	}
	return nil
}
