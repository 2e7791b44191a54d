// pkg/logger/logger.go

package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *zap.Logger

// L returns the process-wide logger, falling back to the zap global if
// initialization has not run yet.
func L() *zap.Logger {
	if log != nil {
		return log
	}
	return zap.L()
}

// Sync flushes buffered log entries.
func Sync() error {
	if log == nil {
		return nil
	}
	return log.Sync()
}

// DefaultConsoleEncoderConfig returns the console encoder used for terminal
// output.
func DefaultConsoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// ParseLogLevel maps a LOG_LEVEL value to a zap level, defaulting to Info.
func ParseLogLevel(raw string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// FindWritableLogPath locates a log file path the current user can write to.
func FindWritableLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "anvil")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "anvil.log"), nil
}

// GetLogFileWriter returns a size-rotated file sink for the given path.
func GetLogFileWriter(path string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	})
}
