package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFileLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskboard.log")
	log := New("taskboard", Options{File: path, Level: "info", Format: "json", MaxSizeMB: 1})

	log.Named("sync").WithSubject("u1", "w1").Infow("subscribed", "table", "activities")
	log.Debugw("hidden")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"service":"taskboard"`)
	assert.Contains(t, out, `"logger":"sync"`)
	assert.Contains(t, out, `"user_id":"u1"`)
	assert.Contains(t, out, `"message":"subscribed"`)
	assert.NotContains(t, out, "hidden")
}

func TestNestedLoggersKeepOneName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskboard.log")
	log := New("taskboard-relay", Options{File: path, Format: "json", MaxSizeMB: 1})

	log.Named("relay").Named("ws").Infow("dialing")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, `"logger":"relay.ws"`)
	assert.Equal(t, 1, strings.Count(line, `"logger":`))
	assert.NotContains(t, line, `"component"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Infow("nothing")
	assert.NotNil(t, log.Named("x"))
}
