// Package transport routes device audio and MIDI through a processing unit.
//
// A Router sits between a device.Callback driver and one attached Unit. On
// every block it advances the transport clock, drains queued MIDI, maps the
// device's channel buffers onto the unit's layout, runs the unit in single or
// double precision and forwards generated MIDI. A missing, suspended or
// misconfigured unit produces silence.
//
// Control methods (Attach, SetTempo, SetDoublePrecision, ...) may be called
// from any goroutine. They share one mutex with the audio callback and never
// block on I/O while holding it.
package transport

import "fmt"

// ChannelCount is an input/output channel pair.
type ChannelCount struct {
	Ins  int `json:"ins"`
	Outs int `json:"outs"`
}

func (c ChannelCount) String() string {
	return fmt.Sprintf("%d in/%d out", c.Ins, c.Outs)
}

// Max returns the larger of Ins and Outs.
func (c ChannelCount) Max() int {
	return max(c.Ins, c.Outs)
}

// LayoutChecker is the part of a Unit the negotiator consults.
type LayoutChecker interface {
	IsMIDIEffect() bool
	AcceptsLayout(layout ChannelCount) bool
}

// CandidateLayouts lists the layouts tried for a device, most preferred first.
// Mono-to-stereo and mirrored-output fallbacks are only offered to devices
// with zero or one input channel.
func CandidateLayouts(unitDefault, device ChannelCount) []ChannelCount {
	candidates := []ChannelCount{device}
	if device.Ins == 0 || device.Ins == 1 {
		candidates = append(candidates,
			ChannelCount{Ins: unitDefault.Ins, Outs: device.Outs},
			ChannelCount{Ins: device.Outs, Outs: device.Outs},
		)
	}
	return candidates
}

// NegotiateLayout picks the first candidate the unit accepts. MIDI-only units
// get no audio channels; if nothing is accepted the device layout is used.
func NegotiateLayout(unit LayoutChecker, unitDefault, device ChannelCount) ChannelCount {
	layout, _ := negotiate(unit, unitDefault, device)
	return layout
}

// negotiate also reports whether the result was accepted by the unit.
func negotiate(unit LayoutChecker, unitDefault, device ChannelCount) (ChannelCount, bool) {
	if unit.IsMIDIEffect() {
		return ChannelCount{}, true
	}
	for _, candidate := range CandidateLayouts(unitDefault, device) {
		if unit.AcceptsLayout(candidate) {
			return candidate, true
		}
	}
	return device, false
}
