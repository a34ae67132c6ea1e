package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig addresses an SMTP relay that accepts STARTTLS on Port.
type SMTPConfig struct {
	Host     string   `json:"host" yaml:"host"`
	Port     int      `json:"port" yaml:"port"`
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"password" yaml:"password"`
	From     string   `json:"from" yaml:"from"`
	To       []string `json:"to" yaml:"to"`
}

func (c SMTPConfig) Enabled() bool { return c.Host != "" && len(c.To) > 0 }

// Email sends plain-text mail.
type Email struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg SMTPConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Email{cfg: cfg, send: smtp.SendMail}
}

// Notify sends one message. smtp.SendMail upgrades to TLS when the server
// offers STARTTLS. It has no context support, so ctx is only checked up front.
func (e *Email) Notify(ctx context.Context, msg Message) error {
	if !e.cfg.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, fmt.Sprint(e.cfg.Port))
	if err := e.send(addr, auth, e.cfg.From, e.cfg.To, e.render(msg)); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

func (e *Email) render(msg Message) []byte {
	ts := msg.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: [fxpilot] %s\r\n", msg.Title)
	fmt.Fprintf(&b, "Date: %s\r\n", ts.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
