package logging

import (
	"context"
	"log/slog"
)

// Levels beyond the slog built-ins. Trace sits below Debug, Critical above
// Error, matching the six levels the server components log at.
const (
	LevelTrace    = slog.Level(-8)
	LevelDebug    = slog.LevelDebug
	LevelInfo     = slog.LevelInfo
	LevelWarn     = slog.LevelWarn
	LevelError    = slog.LevelError
	LevelCritical = slog.Level(12)
)

// Logger is the leveled logging facility the server components depend on.
// It is injected at construction; the core never reaches for a global.
// Args are alternating key/value pairs, slog style.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Critical(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Trace(msg string, args ...any)    {}
func (nopLogger) Debug(msg string, args ...any)    {}
func (nopLogger) Info(msg string, args ...any)     {}
func (nopLogger) Warn(msg string, args ...any)     {}
func (nopLogger) Error(msg string, args ...any)    {}
func (nopLogger) Critical(msg string, args ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlog adapts a *slog.Logger. Trace and Critical map onto the custom
// levels above, so a HandlerOptions.Level of LevelTrace shows everything.
func NewSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Trace(msg string, args ...any) {
	s.l.Log(context.Background(), LevelTrace, msg, args...)
}

func (s *slogLogger) Debug(msg string, args ...any) {
	s.l.Debug(msg, args...)
}

func (s *slogLogger) Info(msg string, args ...any) {
	s.l.Info(msg, args...)
}

func (s *slogLogger) Warn(msg string, args ...any) {
	s.l.Warn(msg, args...)
}

func (s *slogLogger) Error(msg string, args ...any) {
	s.l.Error(msg, args...)
}

func (s *slogLogger) Critical(msg string, args ...any) {
	s.l.Log(context.Background(), LevelCritical, msg, args...)
}
