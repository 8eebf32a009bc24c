package devices

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiorouter/internal/device"
	"github.com/tphakala/audiorouter/internal/midi"
)

func TestPrintListing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := printListing(&buf, &Listing{
		Backend:    "null",
		Playback:   []device.Info{{Index: 0, Name: "Null Playback", ID: "null-out", Default: true}},
		MIDIInputs: []midi.PortInfo{{Number: 1, Name: "USB Keys"}},
		MIDIError:  "no rtmidi",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Audio backend: null")
	assert.Contains(t, out, "Null Playback")
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "USB Keys")
	assert.Contains(t, out, "MIDI unavailable: no rtmidi")
	assert.Contains(t, out, "(none)")
}
