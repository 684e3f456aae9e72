package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dormoron/gimme/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, config.LogSettings{Level: "warn", Format: "json"})

	l.Info("hidden")
	l.Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, config.LogSettings{Level: "info", Format: "TEXT"})
	l.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestLevelFromString(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range testCases {
		assert.Equal(t, want, LevelFromString(in), in)
	}
}

func TestFollow(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)
	defer cfg.Close()

	l := New(&bytes.Buffer{}, config.LogSettings{Level: "info"})
	listener := l.Follow(cfg)

	cfg.Set("log.level", "debug")
	require.Eventually(t, func() bool {
		return l.Level() == slog.LevelDebug
	}, time.Second, 10*time.Millisecond)

	cfg.RemoveChangeListener(listener)
	cfg.Set("log.level", "error")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, slog.LevelDebug, l.Level())
}
