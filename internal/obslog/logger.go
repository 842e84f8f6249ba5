// Package obslog provides the structured logger used throughout the engine:
// the parser's malformed-record warnings, the router's unknown-symbol drops
// and the strategy evaluator's failed alert publishes all go through a
// *Logger. A book drops stale pending events and duplicate replays silently.
package obslog

import (
	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger with the fields every component tags its
// output with (component name, and optionally a symbol).
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production zap logger scoped to a component name.
func New(component string) *Logger {
	zl, err := zap.NewProduction()
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{s: zl.Sugar().With("component", component)}
}

// NewNop returns a Logger that discards everything; useful in tests.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// WithSymbol returns a child logger tagging every entry with the symbol.
func (l *Logger) WithSymbol(symbol string) *Logger {
	return &Logger{s: l.s.With("symbol", symbol)}
}

func (l *Logger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }

// Sync flushes any buffered log entries; call before process exit.
func (l *Logger) Sync() error {
	return l.s.Sync()
}
