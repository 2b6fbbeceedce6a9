// README: slog JSON logger construction shared by all services.
package logging

import (
	"log/slog"
	"os"
	"time"
)

// New builds a JSON slog logger writing to stdout. Level is one of
// DEBUG, INFO, WARN, ERROR; anything else falls back to INFO.
func New(level string) *slog.Logger {
	lv := new(slog.LevelVar)
	switch level {
	case "DEBUG":
		lv.Set(slog.LevelDebug)
	case "WARN":
		lv.Set(slog.LevelWarn)
	case "ERROR":
		lv.Set(slog.LevelError)
	default:
		lv.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lv,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.Attr{Key: "timestamp", Value: slog.StringValue(t.UTC().Format(time.RFC3339))}
				}
			}
			return a
		},
	})

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return slog.New(handler).With("hostname", hostname)
}
