// Package telemetry provides the harness's ambient observability:
// structured logging and opt-in Prometheus metrics. Metric observation
// functions are cheap enough to call from orchestration paths (never from
// the timed closure itself).
package telemetry

import (
	"log/slog"
	"os"
)

// InitLogger installs a JSON slog handler on stderr as the default
// logger, tagged with this process's rank. Stdout is reserved for the
// report table.
func InitLogger(debug bool, rank int) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With("rank", rank)
	slog.SetDefault(logger)
	return logger
}
