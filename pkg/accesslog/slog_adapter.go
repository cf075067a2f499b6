package accesslog

import (
	"context"
	"log/slog"

	"github.com/featkit/featkit-go/pkg/capability"
)

// SlogAdapter writes access events to an slog.Logger.
// Useful for development when you want to see attribute traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Successful accesses log at
// Debug level, failures at Warn.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("instance", event.InstanceID),
		slog.String("attr", event.Attr),
		slog.String("op", event.Op.String()),
		slog.String("outcome", event.Outcome.String()),
		slog.Duration("duration", event.Duration),
	}

	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.Value != "" {
		attrs = append(attrs, slog.String("value", event.Value))
	}
	if event.Stage != "" {
		attrs = append(attrs, slog.String("stage", event.Stage))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}

	level := slog.LevelDebug
	if event.Outcome == capability.OutcomeFailed {
		level = slog.LevelWarn
	}

	a.logger.LogAttrs(context.Background(), level, "attribute access", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
