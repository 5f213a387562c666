package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestNewWithOptionsWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ace.log")
	log, err := NewWithOptions(Options{Level: "info", File: path})
	require.NoError(t, err)

	log.WithSession("s1", "c1").Info("session created", zap.Int("entries", 0))
	log.Debug("dropped")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(b, &line))
	assert.Equal(t, "session created", line["msg"])
	assert.Equal(t, "s1", line["session_id"])
	assert.Equal(t, "c1", line["client_id"])
}
