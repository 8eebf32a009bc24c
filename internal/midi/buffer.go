// Package midi moves MIDI messages between device ports and the audio callback.
//
// Inbound messages are queued by a Collector from the port's goroutine and
// drained once per audio block into a Buffer whose events carry sample offsets.
// Outbound Buffers are handed to an Output, which either sends immediately or
// schedules the messages on a background sender.
//
// Buffer, Collector.Drain and Output.SendBlock never allocate.
package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// Event is a MIDI message positioned within an audio block.
type Event struct {
	// Offset is the sample position inside the block, 0 <= Offset < block size.
	Offset int
	// Message aliases the owning Buffer's storage and is valid until the next Clear.
	Message gomidi.Message
}

// Buffer is a fixed-capacity, offset-ordered list of MIDI events.
type Buffer struct {
	events  []Event
	arena   []byte
	used    int
	dropped uint64
}

// Default Buffer dimensions.
const (
	DefaultBufferEvents = 512
	DefaultArenaBytes   = 16 * 1024
)

// NewBuffer preallocates room for maxEvents messages totalling arenaBytes.
func NewBuffer(maxEvents, arenaBytes int) *Buffer {
	if maxEvents <= 0 {
		maxEvents = DefaultBufferEvents
	}
	if arenaBytes <= 0 {
		arenaBytes = DefaultArenaBytes
	}
	return &Buffer{
		events: make([]Event, 0, maxEvents),
		arena:  make([]byte, arenaBytes),
	}
}

// Clear empties the buffer, keeping its storage.
func (b *Buffer) Clear() {
	b.events = b.events[:0]
	b.used = 0
}

// Len returns the number of events.
func (b *Buffer) Len() int { return len(b.events) }

// Events returns the events in offset order. Messages may be rewritten in place.
func (b *Buffer) Events() []Event { return b.events }

// Dropped returns how many messages were rejected for lack of space since creation.
func (b *Buffer) Dropped() uint64 { return b.dropped }

// Add copies msg into the buffer at offset, after any events already at that offset.
// It reports false and counts a drop when the buffer is full.
func (b *Buffer) Add(msg []byte, offset int) bool {
	if len(msg) == 0 {
		return false
	}
	if len(b.events) == cap(b.events) || b.used+len(msg) > len(b.arena) {
		b.dropped++
		return false
	}

	stored := b.arena[b.used : b.used+len(msg) : b.used+len(msg)]
	copy(stored, msg)
	b.used += len(msg)

	i := len(b.events)
	b.events = b.events[:i+1]
	for i > 0 && b.events[i-1].Offset > offset {
		b.events[i] = b.events[i-1]
		i--
	}
	b.events[i] = Event{Offset: offset, Message: gomidi.Message(stored)}
	return true
}

// CopyFrom replaces the contents with src's events.
func (b *Buffer) CopyFrom(src *Buffer) {
	b.Clear()
	for _, ev := range src.events {
		b.Add(ev.Message, ev.Offset)
	}
}
