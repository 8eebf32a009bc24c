package transport

import (
	"fmt"
	"math"
)

// Tempo limits and default, in beats per minute.
const (
	DefaultTempo = 120.0
	MaxTempo     = 500.0
)

// TicksPerBeat is the resolution used when formatting bars|beats|ticks.
const TicksPerBeat = 960

// TimeSignature is a musical meter.
type TimeSignature struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// DefaultTimeSignature is assumed when the transport does not report one.
var DefaultTimeSignature = TimeSignature{Numerator: 4, Denominator: 4}

// Clock counts samples delivered since the current unit was attached.
// It is not safe for concurrent use; the Router guards it with its mutex.
type Clock struct {
	samples uint64
	tempo   float64
}

// NewClock returns a clock at zero with the given tempo.
func NewClock(tempo float64) Clock {
	return Clock{tempo: tempo}
}

// Reset returns the sample count to zero. Tempo is kept.
func (c *Clock) Reset() { c.samples = 0 }

// Advance adds n samples.
func (c *Clock) Advance(n int) {
	if n > 0 {
		c.samples += uint64(n)
	}
}

// Samples returns the sample count.
func (c *Clock) Samples() uint64 { return c.samples }

// Tempo returns the tempo in BPM.
func (c *Clock) Tempo() float64 { return c.tempo }

// SetTempo sets the tempo in BPM. Callers validate the range.
func (c *Clock) SetTempo(bpm float64) { c.tempo = bpm }

// SecondsAt converts a sample count to seconds.
func SecondsAt(samples uint64, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(samples) / sampleRate
}

// QuarterNotesAt converts a sample count to a quarter-note position,
// treating one beat as one quarter note.
func QuarterNotesAt(samples uint64, sampleRate, bpm float64) float64 {
	if sampleRate <= 0 || bpm <= 0 {
		return 0
	}
	samplesPerBeat := (60.0 / bpm) * sampleRate
	return float64(samples) / samplesPerBeat
}

// PositionInfo is a transport position snapshot. Every field is optional;
// accessors report whether the value is present.
type PositionInfo struct {
	timeInSamples    int64
	timeInSeconds    float64
	ppqPosition      float64
	bpm              float64
	hostTimeNs       uint64
	timeSignature    TimeSignature
	hasTimeInSamples bool
	hasTimeInSeconds bool
	hasPPQ           bool
	hasBPM           bool
	hasHostTime      bool
	hasTimeSignature bool
}

func (p PositionInfo) TimeInSamples() (int64, bool)   { return p.timeInSamples, p.hasTimeInSamples }
func (p PositionInfo) TimeInSeconds() (float64, bool) { return p.timeInSeconds, p.hasTimeInSeconds }
func (p PositionInfo) PPQPosition() (float64, bool)   { return p.ppqPosition, p.hasPPQ }
func (p PositionInfo) BPM() (float64, bool)           { return p.bpm, p.hasBPM }
func (p PositionInfo) HostTimeNs() (uint64, bool)     { return p.hostTimeNs, p.hasHostTime }

func (p PositionInfo) TimeSignature() (TimeSignature, bool) {
	return p.timeSignature, p.hasTimeSignature
}

// SetTimeInSamples and the other setters return a modified copy.
func (p PositionInfo) SetTimeInSamples(v int64) PositionInfo {
	p.timeInSamples, p.hasTimeInSamples = v, true
	return p
}

func (p PositionInfo) SetTimeInSeconds(v float64) PositionInfo {
	p.timeInSeconds, p.hasTimeInSeconds = v, true
	return p
}

func (p PositionInfo) SetPPQPosition(v float64) PositionInfo {
	p.ppqPosition, p.hasPPQ = v, true
	return p
}

func (p PositionInfo) SetBPM(v float64) PositionInfo {
	p.bpm, p.hasBPM = v, true
	return p
}

func (p PositionInfo) SetTimeSignature(ts TimeSignature) PositionInfo {
	p.timeSignature, p.hasTimeSignature = ts, true
	return p
}

// SetHostTimeNs sets or clears the host timestamp.
func (p PositionInfo) SetHostTimeNs(v uint64, ok bool) PositionInfo {
	p.hostTimeNs, p.hasHostTime = v, ok
	if !ok {
		p.hostTimeNs = 0
	}
	return p
}

// PositionAt builds the position for a block starting at samples.
func PositionAt(samples uint64, sampleRate, bpm float64, hostTimeNs uint64, hasHostTime bool) PositionInfo {
	return PositionInfo{}.
		SetHostTimeNs(hostTimeNs, hasHostTime).
		SetTimeInSamples(int64(samples)).
		SetTimeInSeconds(SecondsAt(samples, sampleRate)).
		SetBPM(bpm).
		SetPPQPosition(QuarterNotesAt(samples, sampleRate, bpm))
}

// PlayHead gives a unit read access to the transport position.
// Units call Position only from inside ProcessBlock.
type PlayHead interface {
	Position() (PositionInfo, bool)
}

// FormatTimecode renders seconds as HH:MM:SS.mmm.
func FormatTimecode(seconds float64) string {
	millis := int(math.Round(seconds * 1000))
	absMillis := millis
	if absMillis < 0 {
		absMillis = -absMillis
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d",
		millis/3600000,
		(absMillis/60000)%60,
		(absMillis/1000)%60,
		absMillis%1000)
}

// FormatBarsBeats renders a quarter-note position as bar|beat|ticks, 1-based,
// with TicksPerBeat ticks per beat. Meters with fewer than one quarter note
// per bar render as "1|1|000".
func FormatBarsBeats(quarterNotes float64, sig TimeSignature) string {
	if sig.Numerator <= 0 || sig.Denominator <= 0 {
		return "1|1|000"
	}

	quarterNotesPerBar := sig.Numerator * 4 / sig.Denominator
	if quarterNotesPerBar == 0 {
		return "1|1|000"
	}

	perBar := float64(quarterNotesPerBar)
	beats := (math.Mod(quarterNotes, perBar) / perBar) * float64(sig.Numerator)
	bar := int(quarterNotes)/quarterNotesPerBar + 1
	beat := int(beats) + 1
	ticks := int(math.Mod(beats, 1.0)*TicksPerBeat + 0.5)

	return fmt.Sprintf("%d|%d|%03d", bar, beat, ticks)
}
