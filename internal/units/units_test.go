package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/tphakala/audiorouter/internal/device"
	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/midi"
	"github.com/tphakala/audiorouter/internal/transport"
)

type capturedNote struct {
	on  bool
	key uint8
}

// noteRecorder is a transport.MIDIOutput that keeps every note it is sent.
type noteRecorder struct {
	notes []capturedNote
}

func (r *noteRecorder) IsBackgroundRunning() bool { return false }

func (r *noteRecorder) SendBlock(buf *midi.Buffer, _ float64) { r.SendBlockNow(buf) }

func (r *noteRecorder) SendBlockNow(buf *midi.Buffer) {
	for _, ev := range buf.Events() {
		var ch, key, vel uint8
		switch {
		case ev.Message.GetNoteStart(&ch, &key, &vel):
			r.notes = append(r.notes, capturedNote{on: true, key: key})
		case ev.Message.GetNoteEnd(&ch, &key):
			r.notes = append(r.notes, capturedNote{on: false, key: key})
		}
	}
}

func channels(n, size int, v float32) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, size)
		for j := range out[i] {
			out[i][j] = v
		}
	}
	return out
}

func TestDBToLinear(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, DBToLinear(0), 1e-12)
	assert.InDelta(t, 10.0, DBToLinear(20), 1e-12)
	assert.InDelta(t, 0.5, DBToLinear(-6.0206), 1e-4)
	assert.InDelta(t, -6.0206, LinearToDB(0.5), 1e-4)
	assert.True(t, math.IsInf(LinearToDB(0), -1))
}

func TestGainLayouts(t *testing.T) {
	t.Parallel()

	g, err := NewGain(1)
	require.NoError(t, err)

	assert.True(t, g.AcceptsLayout(transport.ChannelCount{Ins: 1, Outs: 1}))
	assert.True(t, g.AcceptsLayout(transport.ChannelCount{Ins: 2, Outs: 2}))
	assert.False(t, g.AcceptsLayout(transport.ChannelCount{Ins: 1, Outs: 2}))
	assert.False(t, g.AcceptsLayout(transport.ChannelCount{Ins: 0, Outs: 2}))
	assert.False(t, g.AcceptsLayout(transport.ChannelCount{Ins: 4, Outs: 4}))
	assert.Equal(t, transport.ChannelCount{Ins: 2, Outs: 2}, g.DefaultLayout())
}

func TestGainRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{-0.1, DBToLinear(MaxGainDB + 1)} {
		_, err := NewGain(v)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidOption)
	}
}

func TestGainProcessesBothPrecisions(t *testing.T) {
	t.Parallel()

	g, err := NewGain(0.5)
	require.NoError(t, err)

	single := transport.NewBuffer(channels(2, 8, 0.8), 8)
	g.ProcessBlock(single, nil)
	for c := range 2 {
		assert.InDeltaSlice(t, []float32{0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4}, single.Channel(c), 1e-6)
	}

	data := [][]float64{{1, -1, 0.5, 0}, {2, 2, 2, 2}}
	double := transport.NewBuffer(data, 4)
	g.ProcessBlockDouble(double, nil)
	assert.Equal(t, []float64{0.5, -0.5, 0.25, 0}, double.Channel(0))
	assert.Equal(t, []float64{1, 1, 1, 1}, double.Channel(1))

	require.NoError(t, g.SetGain(2))
	assert.InDelta(t, 2.0, g.Gain(), 0)
}

func TestGainThroughRouterInDoublePrecision(t *testing.T) {
	t.Parallel()

	g, err := NewGain(0.25)
	require.NoError(t, err)

	r := transport.NewRouter(transport.WithDoublePrecision(true))
	r.AboutToStart(device.Config{SampleRate: 48000, BlockSize: 32, Inputs: 1, Outputs: 1})
	require.NoError(t, r.Attach(g))
	assert.True(t, g.Prepared())
	assert.Equal(t, transport.ChannelCount{Ins: 1, Outs: 1}, g.Layout())

	inputs, outputs := channels(1, 32, 1), channels(1, 32, 9)
	r.Process(inputs, outputs, 32, device.BlockContext{})
	assert.Equal(t, channels(1, 32, 0.25), outputs)
	assert.Equal(t, "double", r.Status().Precision)

	g.SetSuspended(true)
	r.Process(inputs, outputs, 32, device.BlockContext{})
	assert.Equal(t, channels(1, 32, 0), outputs)

	require.NoError(t, r.Detach())
	assert.False(t, g.Prepared())
}

func TestMetronomeClicksOnBeats(t *testing.T) {
	t.Parallel()

	const (
		rate      = 48000
		blockSize = 480
		blocks    = rate / blockSize
	)

	m, err := NewMetronome(1, true)
	require.NoError(t, err)

	r := transport.NewRouter(transport.WithTempo(120))
	r.AboutToStart(device.Config{SampleRate: rate, BlockSize: blockSize, Inputs: 0, Outputs: 2})
	require.NoError(t, r.Attach(m))
	assert.Equal(t, transport.ChannelCount{Ins: 0, Outs: 2}, r.Status().Layout)

	rec := &noteRecorder{}
	r.SetMIDIOutput(rec)

	rendered := make([]float32, 0, rate)
	outputs := channels(2, blockSize, 0)
	for range blocks {
		r.Process(nil, outputs, blockSize, device.BlockContext{})
		assert.Equal(t, outputs[0], outputs[1], "clicks are identical on every channel")
		rendered = append(rendered, outputs[0]...)
	}

	clickLen := int(rate * clickSeconds)
	assert.NotZero(t, rendered[1], "click on beat 1")
	assert.NotZero(t, rendered[rate/2+1], "click on beat 2")
	assert.Zero(t, rendered[clickLen+10])
	assert.Zero(t, rendered[rate/2-1])

	assert.Equal(t, []capturedNote{
		{on: true, key: accentNote},
		{on: false, key: accentNote},
		{on: true, key: beatNote},
		{on: false, key: beatNote},
	}, rec.notes)
}

func TestMetronomeSilentWithoutTransport(t *testing.T) {
	t.Parallel()

	m, err := NewMetronome(1, false)
	require.NoError(t, err)
	m.Prepare(48000, 16)

	buf := transport.NewBuffer(channels(2, 16, 0.7), 16)
	events := midi.NewBuffer(8, 64)
	m.ProcessBlock(buf, events)

	assert.Equal(t, channels(2, 16, 0), [][]float32{buf.Channel(0), buf.Channel(1)})
	assert.Zero(t, events.Len())

	_, err = NewMetronome(2, false)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func noteKey(t *testing.T, msg gomidi.Message) uint8 {
	t.Helper()
	var ch, key, vel uint8
	if msg.GetNoteStart(&ch, &key, &vel) || msg.GetNoteEnd(&ch, &key) {
		return key
	}
	t.Fatalf("not a note message: %v", msg)
	return 0
}

func TestTransposeShiftsNotes(t *testing.T) {
	t.Parallel()

	tr, err := NewTranspose(12)
	require.NoError(t, err)
	assert.True(t, tr.IsMIDIEffect())
	assert.True(t, tr.AcceptsLayout(transport.ChannelCount{}))

	events := midi.NewBuffer(8, 64)
	events.Add(gomidi.NoteOn(0, 60, 100), 3)
	events.Add(gomidi.ControlChange(0, 7, 90), 5)
	tr.ProcessBlock(nil, events)

	require.Equal(t, 2, events.Len())
	assert.Equal(t, uint8(72), noteKey(t, events.Events()[0].Message))
	assert.Equal(t, 3, events.Events()[0].Offset)
	assert.Equal(t, gomidi.ControlChange(0, 7, 90), events.Events()[1].Message)
}

func TestTransposeNoteOffFollowsNoteOn(t *testing.T) {
	t.Parallel()

	tr, err := NewTranspose(2)
	require.NoError(t, err)
	tr.Prepare(48000, 64)

	events := midi.NewBuffer(8, 64)
	events.Add(gomidi.NoteOn(1, 60, 100), 0)
	tr.ProcessBlock(nil, events)
	assert.Equal(t, uint8(62), noteKey(t, events.Events()[0].Message))

	require.NoError(t, tr.SetSemitones(5))

	events.Clear()
	events.Add(gomidi.NoteOff(1, 60), 0)
	events.Add(gomidi.NoteOn(1, 60, 0), 1)
	tr.ProcessBlock(nil, events)

	require.Equal(t, 2, events.Len())
	assert.Equal(t, uint8(62), noteKey(t, events.Events()[0].Message), "note-off matches its note-on")
	assert.Equal(t, uint8(65), noteKey(t, events.Events()[1].Message), "unmatched note end uses current shift")
}

func TestTransposeDropsOutOfRangeNotes(t *testing.T) {
	t.Parallel()

	tr, err := NewTranspose(MaxTranspose)
	require.NoError(t, err)

	events := midi.NewBuffer(8, 64)
	events.Add(gomidi.NoteOn(0, 100, 100), 0)
	events.Add(gomidi.NoteOff(0, 100), 4)
	tr.ProcessBlock(nil, events)

	assert.Zero(t, events.Len())
	assert.Equal(t, uint64(1), tr.Dropped())

	_, err = NewTranspose(MaxTranspose + 1)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"gain", "metronome", "transpose"}, Names())

	u, err := New("gain", Options{GainDB: 20})
	require.NoError(t, err)
	g, ok := u.(*Gain)
	require.True(t, ok)
	assert.InDelta(t, 10.0, g.Gain(), 1e-9)
	assert.Equal(t, "gain", transport.UnitName(u))

	u, err = New("transpose", Options{Semitones: -3})
	require.NoError(t, err)
	assert.Equal(t, -3, u.(*Transpose).Semitones())

	u, err = New("metronome", DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, DefaultClickLevel, u.(*Metronome).Level(), 0)

	_, err = New("reverb", DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownUnit)
	assert.True(t, errors.IsNotFound(err))
}
