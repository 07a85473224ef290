package telemetry

import (
	"context"
	"log/slog"
	"sort"
)

// NewLogHandler forwards every event to logger as a Debug record with the
// event data flattened into attributes.
func NewLogHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(event Event) {
		if !logger.Enabled(context.Background(), slog.LevelDebug) {
			return
		}
		keys := make([]string, 0, len(event.Data))
		for key := range event.Data {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		attrs := make([]slog.Attr, 0, len(keys)+1)
		attrs = append(attrs, slog.String("event_type", event.Type))
		for _, key := range keys {
			attrs = append(attrs, slog.Any(key, event.Data[key]))
		}
		logger.LogAttrs(context.Background(), slog.LevelDebug, "telemetry event", attrs...)
	}
}
