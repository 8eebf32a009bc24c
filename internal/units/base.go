// Package units provides the built-in processing units the router can host:
// a gain stage, a metronome synth and a MIDI transposer.
package units

import (
	"sync"
	"sync/atomic"

	"github.com/tphakala/audiorouter/internal/transport"
)

// base holds the state every built-in unit shares. The stream fields are
// written by the router's control path with the router lock held and read
// from ProcessBlock under the same lock.
type base struct {
	name      string
	lock      sync.Mutex
	suspended atomic.Bool

	playHead   transport.PlayHead
	layout     transport.ChannelCount
	sampleRate float64
	blockSize  int
	prepared   bool
}

func (b *base) Name() string { return b.name }

func (b *base) CallbackLock() sync.Locker { return &b.lock }

func (b *base) IsSuspended() bool { return b.suspended.Load() }

// SetSuspended pauses or resumes processing. While suspended the router
// outputs silence and the transport clock does not move.
func (b *base) SetSuspended(suspended bool) { b.suspended.Store(suspended) }

func (b *base) SetPlayHead(ph transport.PlayHead) { b.playHead = ph }

func (b *base) Configure(layout transport.ChannelCount, sampleRate float64, blockSize int) error {
	if sampleRate <= 0 || blockSize <= 0 {
		return newConfigError(b.name, layout, sampleRate, blockSize)
	}
	b.layout = layout
	b.sampleRate = sampleRate
	b.blockSize = blockSize
	return nil
}

func (b *base) Prepare(sampleRate float64, blockSize int) {
	b.sampleRate = sampleRate
	b.blockSize = blockSize
	b.prepared = true
}

func (b *base) ReleaseResources() { b.prepared = false }

// Prepared reports whether the unit is between Prepare and ReleaseResources.
func (b *base) Prepared() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.prepared
}

// Layout returns the layout from the last successful Configure.
func (b *base) Layout() transport.ChannelCount {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.layout
}
