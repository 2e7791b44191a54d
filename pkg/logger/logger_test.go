// pkg/logger/logger_test.go

package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zapcore.Level
	}{
		{raw: "debug", want: zapcore.DebugLevel},
		{raw: "DEBUG", want: zapcore.DebugLevel},
		{raw: " warn ", want: zapcore.WarnLevel},
		{raw: "warning", want: zapcore.WarnLevel},
		{raw: "error", want: zapcore.ErrorLevel},
		{raw: "info", want: zapcore.InfoLevel},
		{raw: "", want: zapcore.InfoLevel},
		{raw: "gibberish", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run("level "+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.raw))
		})
	}
}

func TestFindWritableLogPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := FindWritableLogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "state", "anvil", "anvil.log"), path)
	assert.DirExists(t, filepath.Dir(path))
}
