package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes station events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session", event.SessionID))
	}
	if event.SSID != "" {
		attrs = append(attrs, slog.String("ssid", event.SSID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Net != nil:
		attrs = append(attrs, slog.String("event", event.Net.Kind.String()))
		if event.Net.Addr != "" {
			attrs = append(attrs, slog.String("addr", event.Net.Addr))
		}
		if event.Net.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Net.Reason))
		}
		if event.Net.Action != "" {
			attrs = append(attrs, slog.String("action", event.Net.Action))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Exchange != nil:
		attrs = append(attrs,
			slog.String("method", event.Exchange.Method),
			slog.String("path", event.Exchange.Path),
			slog.String("code", event.Exchange.Code),
			slog.Int("content_format", event.Exchange.ContentFormat),
			slog.Int("size", event.Exchange.Size),
		)
		if event.Exchange.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *event.Exchange.ProcessingTime))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "station", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
