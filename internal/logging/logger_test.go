package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLogger(t *testing.T) {
	for _, level := range []string{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		l, err := GetLogger(level)
		require.NoError(t, err, level)
		require.NotNil(t, l)

		var want zapcore.Level
		require.NoError(t, want.UnmarshalText([]byte(level)))
		assert.True(t, l.Core().Enabled(want), level)
	}
}

func TestGetLoggerNone(t *testing.T) {
	l, err := GetLogger(LogLevelNone)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestGetLoggerBadLevel(t *testing.T) {
	_, err := GetLogger("chatty")
	assert.Error(t, err)
	assert.Panics(t, func() { MustGetLogger("chatty") })
}
