package units

import (
	"sync/atomic"

	"github.com/tphakala/audiorouter/internal/midi"
	"github.com/tphakala/audiorouter/internal/transport"
)

// MaxTranspose bounds the shift in semitones, either direction.
const MaxTranspose = 48

type noteState uint8

const (
	noteIdle noteState = iota
	noteSounding
	noteDropped
)

// Transpose is a MIDI effect that shifts note numbers by a fixed number of
// semitones. Note-offs use the shift their note-on was played with, so
// changing the amount mid-note never leaves hanging notes. Notes pushed out
// of the 0..127 range are dropped along with their note-offs.
type Transpose struct {
	base
	semitones atomic.Int32
	dropped   atomic.Uint64

	out   *midi.Buffer
	shift [16][128]int8
	state [16][128]noteState
}

// NewTranspose returns a transposer shifting by semitones.
func NewTranspose(semitones int) (*Transpose, error) {
	t := &Transpose{
		base: base{name: "transpose"},
		out:  midi.NewBuffer(midi.DefaultBufferEvents, midi.DefaultArenaBytes),
	}
	if err := t.SetSemitones(semitones); err != nil {
		return nil, err
	}
	return t, nil
}

// SetSemitones changes the shift for notes started from the next block.
func (t *Transpose) SetSemitones(semitones int) error {
	if semitones < -MaxTranspose || semitones > MaxTranspose {
		return newOptionError(t.name, "semitones", semitones)
	}
	t.semitones.Store(int32(semitones))
	return nil
}

// Semitones returns the current shift.
func (t *Transpose) Semitones() int { return int(t.semitones.Load()) }

// Dropped returns how many notes fell outside the MIDI range.
func (t *Transpose) Dropped() uint64 { return t.dropped.Load() }

func (t *Transpose) IsMIDIEffect() bool { return true }

func (t *Transpose) DefaultLayout() transport.ChannelCount { return transport.ChannelCount{} }

func (t *Transpose) AcceptsLayout(c transport.ChannelCount) bool {
	return c == transport.ChannelCount{}
}

func (t *Transpose) Prepare(sampleRate float64, blockSize int) {
	t.base.Prepare(sampleRate, blockSize)
	t.state = [16][128]noteState{}
}

func (t *Transpose) ProcessBlock(_ *transport.Buffer[float32], events *midi.Buffer) {
	shift := int(t.semitones.Load())
	t.out.Clear()

	var msg [3]byte
	for _, ev := range events.Events() {
		var ch, key, vel uint8
		switch {
		case ev.Message.GetNoteStart(&ch, &key, &vel):
			k := int(key) + shift
			if k < 0 || k > 127 {
				t.state[ch][key] = noteDropped
				t.dropped.Add(1)
				continue
			}
			t.state[ch][key] = noteSounding
			t.shift[ch][key] = int8(shift)
			copy(msg[:], ev.Message)
			msg[1] = byte(k)
			t.out.Add(msg[:len(ev.Message)], ev.Offset)

		case ev.Message.GetNoteEnd(&ch, &key):
			applied := shift
			switch t.state[ch][key] {
			case noteDropped:
				t.state[ch][key] = noteIdle
				continue
			case noteSounding:
				applied = int(t.shift[ch][key])
			}
			t.state[ch][key] = noteIdle
			k := int(key) + applied
			if k < 0 || k > 127 {
				continue
			}
			copy(msg[:], ev.Message)
			msg[1] = byte(k)
			t.out.Add(msg[:len(ev.Message)], ev.Offset)

		default:
			t.out.Add(ev.Message, ev.Offset)
		}
	}

	events.CopyFrom(t.out)
}
