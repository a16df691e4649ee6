package docgen

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogLogger adapts a slog.Logger to Logger.
type SlogLogger struct {
	Logger *slog.Logger
}

// NewSlogLogger wraps l; a nil logger uses slog.Default.
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{Logger: l}
}

func (l SlogLogger) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l SlogLogger) Infof(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l SlogLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l SlogLogger) log(level slog.Level, format string, args ...any) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, fmt.Sprintf(format, args...), "component", "docgen")
}
