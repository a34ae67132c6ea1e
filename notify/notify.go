// Package notify delivers operator alerts.
package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Level colours an alert where the channel supports it.
type Level int

const (
	Info Level = iota
	Warn
	Alert
)

func (l Level) String() string {
	switch l {
	case Warn:
		return "warn"
	case Alert:
		return "alert"
	default:
		return "info"
	}
}

type Message struct {
	Title string
	Body  string
	Level Level
	Time  time.Time
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }

// Log writes messages to a zap logger.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.Named("notify")}
}

func (l *Log) Notify(_ context.Context, msg Message) error {
	fields := []zap.Field{zap.String("title", msg.Title), zap.String("body", msg.Body)}
	switch msg.Level {
	case Alert:
		l.log.Error("operator alert", fields...)
	case Warn:
		l.log.Warn("operator alert", fields...)
	default:
		l.log.Info("operator notice", fields...)
	}
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Notify(ctx, msg))
	}
	return errs
}

// Async delivers in the background so a slow channel cannot stall the
// caller. Delivery errors are logged.
type Async struct {
	next    Notifier
	timeout time.Duration
	log     *zap.Logger
}

func NewAsync(next Notifier, timeout time.Duration, log *zap.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Async{next: next, timeout: timeout, log: log.Named("notify")}
}

// Notify returns immediately. The delivery does not inherit ctx
// cancellation so an alert about a cancelled cycle still goes out.
func (a *Async) Notify(ctx context.Context, msg Message) error {
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	go func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(dctx, msg); err != nil {
			a.log.Warn("notification failed", zap.String("title", msg.Title), zap.Error(err))
		}
	}()
	return nil
}
