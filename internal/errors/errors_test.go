package errors

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}
	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuildReportsWhenReporterActive(t *testing.T) {
	rep := &recordingReporter{}
	SetTelemetryReporter(rep)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("midi port vanished")).Component("midi").Build()

	require.Len(t, rep.reported, 1)
	assert.Same(t, ee, rep.reported[0])
	assert.Equal(t, CategoryMIDI, ee.Category, "category should be detected from message")
	assert.True(t, ee.IsReported())
}

func TestEnhancedErrorIsMatchesCategory(t *testing.T) {
	t.Parallel()

	sentinel := New(NewStd("tempo out of range")).Category(CategoryValidation).Build()
	other := New(NewStd("bpm must be positive")).Category(CategoryValidation).Build()
	cfg := New(NewStd("bad layout")).Category(CategoryConfiguration).Build()

	assert.True(t, Is(other, sentinel))
	assert.False(t, Is(cfg, sentinel))
	assert.True(t, IsCategory(fmt.Errorf("wrapped: %w", cfg), CategoryConfiguration))
}

func TestBuilderContextAndPriority(t *testing.T) {
	t.Parallel()

	ee := Newf("device %q failed", "hw:0").
		Component("device").
		Category(CategoryAudioDevice).
		DeviceContext("hw:0", 48000, 512).
		Priority("urgent").
		Build()

	assert.Equal(t, PriorityMedium, ee.GetPriority(), "unknown priority falls back to medium")
	ctx := ee.GetContext()
	assert.Equal(t, "hw:0", ctx["device"])
	assert.InDelta(t, 48000.0, ctx["sample_rate"], 0)
	assert.Equal(t, 512, ctx["block_size"])

	// Copy must not alias the internal map
	ctx["device"] = "changed"
	assert.Equal(t, "hw:0", ee.GetContext()["device"])
}

func TestBuilderTimingAndTimestamp(t *testing.T) {
	t.Parallel()

	before := time.Now()
	ee := Newf("render aborted").
		Component("engine").
		Timing("render", 1500*time.Millisecond).
		Build()

	ctx := ee.GetContext()
	assert.Equal(t, "render", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])
	assert.False(t, ee.GetTimestamp().Before(before))
	assert.False(t, ee.GetTimestamp().After(time.Now()))
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"midi message", NewStd("midi input closed"), "", CategoryMIDI},
		{"layout message", NewStd("unit rejected layout"), "", CategoryNegotiation},
		{"device message", NewStd("device stopped unexpectedly"), "", CategoryAudioDevice},
		{"component fallback", NewStd("boom"), "transport", CategoryAudio},
		{"generic", NewStd("boom"), "elsewhere", CategoryGeneric},
		{"enhanced passthrough", New(NewStd("x")).Category(CategoryLimit).Build(), "", CategoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectCategory(tt.err, tt.component))
		})
	}
}

func TestRegexPrecompilation(t *testing.T) {
	t.Parallel()

	scrubbed1 := basicURLScrub("Error at https://api.example.com?api_key=secret123&token=abc")
	expected1 := "Error at https://api.example.com?[REDACTED]"
	if scrubbed1 != expected1 {
		t.Errorf("URL scrubbing failed. Expected: %s, got: %s", expected1, scrubbed1)
	}

	scrubbed2 := basicURLScrub("Config error: api_key=secret123 is invalid")
	if !strings.Contains(scrubbed2, "[API_KEY_REDACTED]") {
		t.Errorf("API key scrubbing failed. Expected to contain '[API_KEY_REDACTED]', got: %s", scrubbed2)
	}

	scrubbed3 := basicURLScrub("Auth failed with token=abc123 and auth=xyz789")
	if strings.Contains(scrubbed3, "abc123") || strings.Contains(scrubbed3, "xyz789") {
		t.Errorf("Token scrubbing failed. Sensitive data still present: %s", scrubbed3)
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).
		Component("device").
		Category(CategoryAudioDevice).
		Context("operation", "start_stream").
		Build()

	assert.Equal(t, "Device Audio Device Error Start Stream", generateErrorTitle(ee))
}
