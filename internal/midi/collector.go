package midi

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"
)

// MaxMessageSize is the longest message the collector and output queues accept.
const MaxMessageSize = math.MaxUint8

// DefaultQueueBytes sizes the collector FIFO.
const DefaultQueueBytes = 64 * 1024

// Queue record layout: float64 timestamp (seconds), length byte, message bytes.
const (
	recordTimeBytes  = 8
	recordHeaderSize = recordTimeBytes + 1
	maxRecordSize    = recordHeaderSize + MaxMessageSize
)

// subSampleShift is the fixed-point precision used when compressing a long
// stretch of queued events into one block.
const subSampleShift = 10

// squashLimitBlocks caps how many blocks worth of backlog are squeezed into one block.
const squashLimitBlocks = 4

// Clock returns monotonic time since an arbitrary origin.
type Clock func() time.Duration

// Collector queues incoming MIDI from any goroutine and hands it to the audio
// callback one block at a time, converting arrival times into sample offsets.
type Collector struct {
	ring  *ringbuffer.RingBuffer
	clock Clock

	writeMu  sync.Mutex
	writeBuf [maxRecordSize]byte

	// readBuf is owned by the single Drain caller.
	readBuf [maxRecordSize]byte

	sampleRateBits atomic.Uint64
	lastDrain      atomic.Int64 // clock value at the previous Drain or Reset

	dropped atomic.Uint64
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithClock replaces the monotonic clock, e.g. with a fake in tests.
func WithClock(clock Clock) CollectorOption {
	return func(c *Collector) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCollector creates a collector with a FIFO of queueBytes bytes.
func NewCollector(queueBytes int, opts ...CollectorOption) *Collector {
	if queueBytes < maxRecordSize {
		queueBytes = DefaultQueueBytes
	}
	start := time.Now()
	c := &Collector{
		ring:  ringbuffer.New(queueBytes),
		clock: func() time.Duration { return time.Since(start) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the collector's current clock reading in seconds.
func (c *Collector) Now() float64 {
	return c.clock().Seconds()
}

// SampleRate returns the rate set by the last Reset, or 0.
func (c *Collector) SampleRate() float64 {
	return math.Float64frombits(c.sampleRateBits.Load())
}

// Dropped returns the number of messages discarded because the queue was
// full or the backlog exceeded the squash window.
func (c *Collector) Dropped() uint64 {
	return c.dropped.Load()
}

// Pending returns the number of queued bytes.
func (c *Collector) Pending() int {
	return c.ring.Length()
}

// Reset discards queued messages and restarts the timebase at sampleRate.
func (c *Collector) Reset(sampleRate float64) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ring.Reset()
	c.sampleRateBits.Store(math.Float64bits(sampleRate))
	c.lastDrain.Store(int64(c.clock()))
}

// Add queues msg stamped with the current clock time.
func (c *Collector) Add(msg []byte) error {
	return c.AddAt(msg, c.Now())
}

// AddAt queues msg stamped at timestamp seconds on the collector clock.
func (c *Collector) AddAt(msg []byte, timestamp float64) error {
	switch {
	case len(msg) == 0:
		return ErrEmptyMessage
	case len(msg) > MaxMessageSize:
		return ErrMessageTooLarge
	case c.SampleRate() <= 0:
		return ErrCollectorNotReady
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	size := recordHeaderSize + len(msg)
	if c.ring.Free() < size {
		c.dropped.Add(1)
		return ErrQueueFull
	}

	binary.LittleEndian.PutUint64(c.writeBuf[:recordTimeBytes], math.Float64bits(timestamp))
	c.writeBuf[recordTimeBytes] = byte(len(msg))
	copy(c.writeBuf[recordHeaderSize:], msg)

	// Only this writer consumes free space, so a checked write is never partial.
	if _, err := c.ring.Write(c.writeBuf[:size]); err != nil {
		c.dropped.Add(1)
		return ErrQueueFull
	}
	return nil
}

// Drain moves every queued message into dst with offsets in [0, numSamples).
// dst is not cleared first. Only one goroutine may call Drain.
//
// When more source time elapsed since the previous Drain than one block
// covers, the backlog (at most four blocks of it) is compressed into the
// block; older events are dropped. Otherwise events are aligned to the end
// of the block.
func (c *Collector) Drain(dst *Buffer, numSamples int) {
	now := c.clock()
	last := time.Duration(c.lastDrain.Swap(int64(now)))

	if c.ring.Length() == 0 {
		return
	}

	sampleRate := c.SampleRate()
	if numSamples <= 0 || sampleRate <= 0 {
		c.discardQueued()
		return
	}

	numSource := max(1, int(math.Round((now-last).Seconds()*sampleRate)))
	startSample := 0
	scale := 1 << subSampleShift
	squash := numSource > numSamples

	if squash {
		maxLen := numSamples * squashLimitBlocks
		if numSource > maxLen {
			startSample = numSource - maxLen
			numSource = maxLen
		}
		scale = (numSamples << subSampleShift) / numSource
	} else {
		startSample = numSamples - numSource
	}

	lastSec := last.Seconds()
	for {
		msg, ts, ok := c.readRecord()
		if !ok {
			return
		}

		samplePos := int((ts - lastSec) * sampleRate)

		var pos int
		if squash {
			if samplePos < startSample {
				c.dropped.Add(1)
				continue
			}
			pos = min(((samplePos-startSample)*scale)>>subSampleShift, numSamples-1)
		} else {
			pos = min(max(samplePos+startSample, 0), numSamples-1)
		}

		if !dst.Add(msg, pos) {
			c.dropped.Add(1)
		}
	}
}

func (c *Collector) readRecord() (msg []byte, timestamp float64, ok bool) {
	if c.ring.Length() < recordHeaderSize {
		return nil, 0, false
	}
	if n, err := c.ring.Read(c.readBuf[:recordHeaderSize]); err != nil || n != recordHeaderSize {
		return nil, 0, false
	}

	timestamp = math.Float64frombits(binary.LittleEndian.Uint64(c.readBuf[:recordTimeBytes]))
	size := int(c.readBuf[recordTimeBytes])

	body := c.readBuf[recordHeaderSize : recordHeaderSize+size]
	if n, err := c.ring.Read(body); err != nil || n != size {
		return nil, 0, false
	}
	return body, timestamp, true
}

func (c *Collector) discardQueued() {
	for {
		if _, _, ok := c.readRecord(); !ok {
			return
		}
		c.dropped.Add(1)
	}
}
