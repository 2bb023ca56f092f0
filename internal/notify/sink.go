package notify

import (
	"context"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/rs/zerolog"
)

// LogSink writes delivered notifications to the structured log. Used when no
// client-facing transport is configured, and in tests.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink on the given logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs the notification and reports success.
func (s *LogSink) Deliver(ctx context.Context, n *domain.Notification) error {
	s.logger.Info().
		Str("type", n.Type).
		Str("ref_entity", n.RefEntity).
		Str("ref_id", n.RefID.String()).
		Str("message", n.Message).
		Msg("notification delivered")
	return nil
}

// FanOutSink delivers to several sinks; the first error wins but every sink
// still sees the notification.
type FanOutSink struct {
	sinks []domain.NotificationSink
}

// NewFanOutSink creates a FanOutSink.
func NewFanOutSink(sinks ...domain.NotificationSink) *FanOutSink {
	return &FanOutSink{sinks: sinks}
}

// Deliver forwards the notification to every configured sink.
func (s *FanOutSink) Deliver(ctx context.Context, n *domain.Notification) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ domain.NotificationSink = (*LogSink)(nil)
	_ domain.NotificationSink = (*FanOutSink)(nil)
)
