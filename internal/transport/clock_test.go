package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockAdvanceAndReset(t *testing.T) {
	t.Parallel()

	c := NewClock(DefaultTempo)
	c.Advance(64)
	c.Advance(64)
	c.Advance(-10)
	assert.Equal(t, uint64(128), c.Samples())

	c.SetTempo(90)
	c.Reset()
	assert.Zero(t, c.Samples())
	assert.InDelta(t, 90.0, c.Tempo(), 0)
}

func TestPositionConversions(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, SecondsAt(48000, 48000), 1e-12)
	assert.Zero(t, SecondsAt(48000, 0))

	assert.InDelta(t, 2.0, QuarterNotesAt(48000, 48000, 120), 1e-12)
	assert.InDelta(t, 1.0, QuarterNotesAt(48000, 48000, 60), 1e-12)
	assert.Zero(t, QuarterNotesAt(48000, 48000, 0))
}

func TestPositionAt(t *testing.T) {
	t.Parallel()

	pos := PositionAt(24000, 48000, 120, 0, false)

	samples, ok := pos.TimeInSamples()
	assert.True(t, ok)
	assert.Equal(t, int64(24000), samples)

	seconds, ok := pos.TimeInSeconds()
	assert.True(t, ok)
	assert.InDelta(t, 0.5, seconds, 1e-12)

	ppq, ok := pos.PPQPosition()
	assert.True(t, ok)
	assert.InDelta(t, 1.0, ppq, 1e-12)

	bpm, ok := pos.BPM()
	assert.True(t, ok)
	assert.InDelta(t, 120.0, bpm, 0)

	_, ok = pos.HostTimeNs()
	assert.False(t, ok)
	_, ok = pos.TimeSignature()
	assert.False(t, ok, "meter is left to the unit")

	withHost := PositionAt(0, 48000, 120, 1234, true)
	host, ok := withHost.HostTimeNs()
	assert.True(t, ok)
	assert.Equal(t, uint64(1234), host)
}

func TestFormatBarsBeats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ppq  float64
		sig  TimeSignature
		want string
	}{
		{"start", 0, DefaultTimeSignature, "1|1|000"},
		{"second bar half beat", 4.5, DefaultTimeSignature, "2|1|480"},
		{"third beat", 2.25, DefaultTimeSignature, "1|3|240"},
		{"compound meter", 3.75, TimeSignature{6, 8}, "2|2|480"},
		{"sub-quarter bar", 10, TimeSignature{1, 8}, "1|1|000"},
		{"invalid meter", 10, TimeSignature{0, 4}, "1|1|000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatBarsBeats(tt.ppq, tt.sig))
		})
	}
}

func TestFormatTimecode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:00:00.000", FormatTimecode(0))
	assert.Equal(t, "00:00:01.250", FormatTimecode(1.25))
	assert.Equal(t, "01:01:01.500", FormatTimecode(3661.5))
}
