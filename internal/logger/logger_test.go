package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiorouter/internal/logger"
)

func TestSlogLoggerModuleAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC).Module("transport")

	log.Info("unit attached",
		logger.String("unit", "gain"),
		logger.Int("ins", 2),
		logger.Float64("rate", 48000.12345),
		logger.Error(errors.New("layout rejected")))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, `msg="unit attached"`)
	assert.Contains(t, out, "module=transport")
	assert.Contains(t, out, "unit=gain")
	assert.Contains(t, out, "ins=2")
	assert.Contains(t, out, "rate=48000.123")
	assert.Contains(t, out, `error="layout rejected"`)
	assert.NotContains(t, out, "time=", "console output omits timestamps")
}

func TestSlogLoggerLevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelWarn, time.UTC)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Log(logger.LogLevelInfo, "hidden as well")
	log.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestTraceLevelName(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger.NewSlogLogger(buf, logger.LogLevelTrace, time.UTC).Trace("deep")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestWithAndSubmoduleDoNotLeakFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	root := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC).Module("device")
	child := root.With(logger.String("backend", "alsa")).Module("malgo")

	child.Info("started")
	root.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "module=device.malgo")
	assert.Contains(t, lines[0], "backend=alsa")
	assert.NotContains(t, lines[1], "backend=alsa")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)

	ctx := logger.WithTraceID(context.Background(), "req-42")
	log.WithContext(ctx).Info("tempo changed")

	assert.Contains(t, buf.String(), "trace_id=req-42")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "router.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"midi": "error"},
	})
	require.NoError(t, err)

	cl.Module("transport").Debug("block size changed", logger.Int("block_size", 256))
	cl.Module("midi").Info("filtered by module level")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "transport", entry["module"])
	assert.InDelta(t, 256, entry["block_size"], 0)
	assert.NotEmpty(t, entry["time"])
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = logger.NewCentralLogger(nil)
	require.Error(t, err)
}
