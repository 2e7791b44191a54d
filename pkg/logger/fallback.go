// pkg/logger/fallback.go

package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewFallbackLogger builds a console-only logger for environments where no
// log file is writable.
func NewFallbackLogger() *zap.Logger {
	cfg := DefaultConsoleEncoderConfig()

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.AddSync(os.Stderr),
		ParseLogLevel(os.Getenv("LOG_LEVEL")),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// InitializeWithFallback sets up the process-wide logger: console output on
// stderr plus a rotated JSON file under the user's state directory. Falls
// back to console-only when no log path is writable.
func InitializeWithFallback() {
	if log != nil {
		return
	}

	path, err := FindWritableLogPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No writable log path found, logging to console only:", err)
		log = NewFallbackLogger()
		zap.ReplaceGlobals(log)
		return
	}

	consoleCfg := DefaultConsoleEncoderConfig()
	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), GetLogFileWriter(path), zapcore.DebugLevel),
	)

	log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	zap.ReplaceGlobals(log)
	log.Debug("Logger initialized",
		zap.String("log_level", level.String()),
		zap.String("log_path", path),
	)
}

// InitFallback guarantees some logger exists before command execution.
func InitFallback() {
	if log == nil {
		InitializeWithFallback()
	}
}
