package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

// ParseLevel maps a config level to zap. Unknown values fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func consoleCore(level zapcore.Level) zapcore.Core {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(level),
	)
}

// New builds a console logger writing to stdout at the given level.
func New(level string) *Logger {
	return &Logger{
		SugaredLogger: zap.New(consoleCore(ParseLevel(level)), zap.AddCaller()).Sugar(),
	}
}
