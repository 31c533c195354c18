// Package notify delivers user-facing notifications. Delivery is best effort:
// callers log failures and never undo the state change that triggered them.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Message is a single notification addressed to one user.
type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink accepts notifications for delivery.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that only logs.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("type", msg.Type),
		zap.String("user_id", msg.UserID),
		zap.String("title", msg.Title),
		zap.String("message", msg.Message),
		zap.String("action_url", msg.ActionURL),
	)
	return nil
}

// MultiSink fans a notification out to every sink. All sinks are attempted
// even when one fails.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*AMQPSink)(nil)
	_ Sink = MultiSink(nil)
)
