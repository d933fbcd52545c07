package logger

import (
	"testing"

	"ems-director/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitReplacesGlobals(t *testing.T) {
	flush, err := Init(&config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	defer flush()

	require.False(t, zap.L().Core().Enabled(zapcore.InfoLevel))
	require.True(t, zap.L().Core().Enabled(zapcore.WarnLevel))
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	_, err := Init(&config.LogConfig{Level: "chatty"})
	require.Error(t, err)
}
