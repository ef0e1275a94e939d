package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	for level, want := range map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		log, err := New(level)
		require.NoError(t, err, level)
		require.True(t, log.Core().Enabled(want), level)
		if want > zapcore.DebugLevel {
			require.False(t, log.Core().Enabled(want-1), level)
		}
	}
}

func TestNew_UnknownLevel(t *testing.T) {
	_, err := New("loud")
	require.Error(t, err)
}
