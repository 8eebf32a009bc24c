package units

import (
	"math"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/tphakala/audiorouter/internal/midi"
	"github.com/tphakala/audiorouter/internal/transport"
)

// Metronome click parameters.
const (
	clickSeconds  = 0.03
	accentFreq    = 1500.0
	beatFreq      = 1000.0
	clickChannel  = 9 // GM percussion
	accentNote    = 76
	beatNote      = 77
	clickVelocity = 100
	beatEpsilon   = 1e-9
)

// DefaultClickLevel is the metronome's default amplitude.
const DefaultClickLevel = 0.5

// Metronome is a synth that clicks on every beat of the transport, with an
// accent on the first beat of each 4/4 bar. It ignores its audio input and
// can also emit the clicks as GM percussion notes.
type Metronome struct {
	base
	levelBits atomic.Uint64
	emitNotes atomic.Bool

	// Messages are built once so ProcessBlock never allocates.
	accentOn, accentOff gomidi.Message
	beatOn, beatOff     gomidi.Message

	clickLen  int
	remaining int
	phase     float64
	step      float64
	lastBeat  int64
	noteOff   gomidi.Message // pending note-off, nil when none
}

// NewMetronome returns a metronome at the given output level (0..1).
func NewMetronome(level float64, emitNotes bool) (*Metronome, error) {
	m := &Metronome{
		base:      base{name: "metronome"},
		accentOn:  gomidi.NoteOn(clickChannel, accentNote, clickVelocity),
		accentOff: gomidi.NoteOff(clickChannel, accentNote),
		beatOn:    gomidi.NoteOn(clickChannel, beatNote, clickVelocity),
		beatOff:   gomidi.NoteOff(clickChannel, beatNote),
		lastBeat:  -1,
	}
	if err := m.SetLevel(level); err != nil {
		return nil, err
	}
	m.emitNotes.Store(emitNotes)
	return m, nil
}

// SetLevel sets the click amplitude, 0..1.
func (m *Metronome) SetLevel(level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return newOptionError(m.name, "level", level)
	}
	m.levelBits.Store(math.Float64bits(level))
	return nil
}

// Level returns the click amplitude.
func (m *Metronome) Level() float64 {
	return math.Float64frombits(m.levelBits.Load())
}

// SetEmitNotes toggles MIDI note output for each click.
func (m *Metronome) SetEmitNotes(enabled bool) { m.emitNotes.Store(enabled) }

func (m *Metronome) IsMIDIEffect() bool { return false }

func (m *Metronome) DefaultLayout() transport.ChannelCount {
	return transport.ChannelCount{Ins: 0, Outs: 2}
}

// AcceptsLayout takes any input count; inputs are overwritten.
func (m *Metronome) AcceptsLayout(c transport.ChannelCount) bool {
	return c.Outs == 1 || c.Outs == 2
}

func (m *Metronome) Prepare(sampleRate float64, blockSize int) {
	m.base.Prepare(sampleRate, blockSize)
	m.clickLen = max(1, int(sampleRate*clickSeconds))
	m.reset()
}

func (m *Metronome) ReleaseResources() {
	m.base.ReleaseResources()
	m.reset()
}

func (m *Metronome) reset() {
	m.remaining = 0
	m.phase = 0
	m.lastBeat = -1
	m.noteOff = nil
}

func (m *Metronome) ProcessBlock(buf *transport.Buffer[float32], events *midi.Buffer) {
	buf.Clear()
	n := buf.NumSamples()
	notes := m.emitNotes.Load()

	if m.noteOff != nil && m.remaining == 0 {
		m.endNote(events, 0, notes)
	}

	cursor := 0
	if ppq, bpm, ok := m.beatClock(); ok {
		samplesPerBeat := 60.0 / bpm * m.sampleRate
		if ppq+beatEpsilon < float64(m.lastBeat) {
			m.lastBeat = -1 // transport moved backwards
		}

		beat := math.Ceil(ppq - beatEpsilon)
		for at := (beat - ppq) * samplesPerBeat; at < float64(n); at += samplesPerBeat {
			start := max(0, int(at))
			if int64(beat) > m.lastBeat {
				m.render(buf, events, cursor, start, notes)
				cursor = start
				m.trigger(int64(beat), events, start, notes)
			}
			beat++
		}
	}
	m.render(buf, events, cursor, n, notes)
}

func (m *Metronome) beatClock() (ppq, bpm float64, ok bool) {
	if m.playHead == nil || m.sampleRate <= 0 {
		return 0, 0, false
	}
	pos, ok := m.playHead.Position()
	if !ok {
		return 0, 0, false
	}
	ppq, hasPPQ := pos.PPQPosition()
	bpm, hasBPM := pos.BPM()
	if !hasPPQ || !hasBPM || bpm <= 0 {
		return 0, 0, false
	}
	return ppq, bpm, true
}

func (m *Metronome) trigger(beat int64, events *midi.Buffer, offset int, notes bool) {
	sig, ok := transport.TimeSignature{}, false
	if m.playHead != nil {
		if pos, has := m.playHead.Position(); has {
			sig, ok = pos.TimeSignature()
		}
	}
	if !ok || sig.Numerator <= 0 {
		sig = transport.DefaultTimeSignature
	}
	accent := beat%int64(sig.Numerator) == 0

	freq := beatFreq
	on, off := m.beatOn, m.beatOff
	if accent {
		freq = accentFreq
		on, off = m.accentOn, m.accentOff
	}

	m.lastBeat = beat
	m.remaining = m.clickLen
	m.phase = 0
	m.step = 2 * math.Pi * freq / m.sampleRate

	if m.noteOff != nil {
		m.endNote(events, offset, notes)
	}
	if notes {
		events.Add(on, offset)
		m.noteOff = off
	}
}

func (m *Metronome) endNote(events *midi.Buffer, offset int, notes bool) {
	if notes {
		events.Add(m.noteOff, offset)
	}
	m.noteOff = nil
}

// render writes the active click into samples [from, to) of every channel.
func (m *Metronome) render(buf *transport.Buffer[float32], events *midi.Buffer, from, to int, notes bool) {
	if m.remaining == 0 || from >= to {
		return
	}
	level := m.Level()
	channels := buf.NumChannels()
	for i := from; i < to && m.remaining > 0; i++ {
		env := float64(m.remaining) / float64(m.clickLen)
		v := float32(level * env * math.Sin(m.phase))
		for c := range channels {
			buf.Channel(c)[i] = v
		}
		m.phase += m.step
		m.remaining--
		if m.remaining == 0 && m.noteOff != nil {
			m.endNote(events, i, notes)
		}
	}
}
