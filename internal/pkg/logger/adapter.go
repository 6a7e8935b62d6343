package logger

import (
	"io"
	"log/slog"

	"portfolio_aggregator/internal/app/port"
)

// slogAdapter implements port.Logger on top of a slog.Logger.
type slogAdapter struct {
	l *slog.Logger
}

// NewSlogAdapter wraps l, or the process default logger when l is nil.
func NewSlogAdapter(l *slog.Logger) port.Logger {
	if l == nil {
		ensureInitialized()
		l = globalLogger
	}
	return &slogAdapter{l: l}
}

// Named returns a port.Logger tagging every entry with component=name.
func Named(name string) port.Logger {
	ensureInitialized()
	return &slogAdapter{l: globalLogger.With("component", name)}
}

// NewDiscard returns a port.Logger that drops everything.
func NewDiscard() port.Logger {
	return &slogAdapter{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
