package transport

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/tphakala/audiorouter/internal/midi"
)

// Precision selects the sample type a unit processes.
type Precision int

const (
	SinglePrecision Precision = iota
	DoublePrecision
)

func (p Precision) String() string {
	if p == DoublePrecision {
		return "double"
	}
	return "single"
}

// Unit is an audio/MIDI processor driven by the Router.
//
// The Router keeps a non-owning reference: the caller must keep the unit
// alive from Attach until Detach (or the next Attach) returns. Re-attaching
// the current unit is a no-op only for comparable types such as pointers;
// other values are treated as a new unit.
type Unit interface {
	LayoutChecker

	// DefaultLayout is the unit's preferred channel configuration.
	DefaultLayout() ChannelCount

	// Configure applies the negotiated layout and stream format before Prepare.
	// MIDI effects receive a zero layout.
	Configure(layout ChannelCount, sampleRate float64, blockSize int) error

	Prepare(sampleRate float64, blockSize int)
	ReleaseResources()

	// ProcessBlock runs in the audio callback with the unit's CallbackLock held.
	// buf has max(ins, outs) channels; the first ins hold input, all are written as output.
	ProcessBlock(buf *Buffer[float32], events *midi.Buffer)

	IsSuspended() bool

	// CallbackLock is held around every ProcessBlock call.
	CallbackLock() sync.Locker
}

// DoublePrecisionUnit is implemented by units that can process float64 blocks.
type DoublePrecisionUnit interface {
	Unit
	SupportsDoublePrecision() bool
	SetPrecision(p Precision)
	ProcessBlockDouble(buf *Buffer[float64], events *midi.Buffer)
}

// PlayHeadReceiver is implemented by units that read the transport position.
type PlayHeadReceiver interface {
	SetPlayHead(ph PlayHead)
}

// Named is implemented by units that report a display name.
type Named interface {
	Name() string
}

// sameUnit reports whether a and b are the same attached unit. Units whose
// dynamic type is not comparable are never considered equal.
func sameUnit(a, b Unit) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// UnitName returns the unit's Name if it has one, otherwise its type.
func UnitName(u Unit) string {
	if u == nil {
		return ""
	}
	if n, ok := u.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", u)
}
