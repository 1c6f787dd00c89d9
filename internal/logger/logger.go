package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Log levels accepted in config.yml.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	processLogger *Logger
	once          sync.Once
)

// Get returns the process-wide logger. Only the first call's level is honoured,
// so main calls it right after the config is loaded.
func Get(level string) *Logger {
	once.Do(func() {
		processLogger = New(level)
	})
	return processLogger
}

// NewNop returns a logger that discards everything. Intended for tests.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component)}
}
