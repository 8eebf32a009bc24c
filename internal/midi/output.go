package midi

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/audiorouter/internal/logger"
)

// Port is the sending half of a MIDI output device. gomidi's drivers.Out satisfies it.
type Port interface {
	Send(data []byte) error
}

// Output record layout: int64 due time (ns on the output clock), length byte, message bytes.
const (
	outTimeBytes  = 8
	outHeaderSize = outTimeBytes + 1
	outMaxRecord  = outHeaderSize + MaxMessageSize
)

// Output delivers MIDI blocks produced by the audio callback to a Port.
//
// While the background sender runs, SendBlock schedules each event at its
// sample offset relative to the call time. Otherwise callers use SendBlockNow.
type Output struct {
	port  Port
	queue *ringbuffer.RingBuffer
	clock Clock
	log   logger.Logger

	writeBuf [outMaxRecord]byte
	readBuf  [outMaxRecord]byte

	notify chan struct{}

	mu      sync.Mutex // guards cancel and done
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// OutputOption configures an Output.
type OutputOption func(*Output)

// WithOutputClock replaces the scheduling clock.
func WithOutputClock(clock Clock) OutputOption {
	return func(o *Output) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithOutputLogger sets the logger used by the background sender.
func WithOutputLogger(l logger.Logger) OutputOption {
	return func(o *Output) {
		if l != nil {
			o.log = l
		}
	}
}

// NewOutput wraps port with a scheduling queue of queueBytes bytes.
func NewOutput(port Port, queueBytes int, opts ...OutputOption) (*Output, error) {
	if port == nil {
		return nil, ErrNoPort
	}
	if queueBytes < outMaxRecord {
		queueBytes = DefaultQueueBytes
	}
	start := time.Now()
	o := &Output{
		port:   port,
		queue:  ringbuffer.New(queueBytes),
		clock:  func() time.Duration { return time.Since(start) },
		log:    GetLogger().Module("output"),
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// IsBackgroundRunning reports whether the background sender is active.
func (o *Output) IsBackgroundRunning() bool {
	return o.running.Load()
}

// Stats returns counts of sent, dropped and failed messages.
func (o *Output) Stats() (sent, dropped, failed uint64) {
	return o.sent.Load(), o.dropped.Load(), o.failed.Load()
}

// SendBlockNow sends every event in buf immediately, in order.
func (o *Output) SendBlockNow(buf *Buffer) {
	for _, ev := range buf.Events() {
		o.send(ev.Message)
	}
}

// SendBlock schedules buf's events relative to now. Called from the audio
// callback; it only copies into the queue and wakes the sender.
func (o *Output) SendBlock(buf *Buffer, sampleRate float64) {
	if buf.Len() == 0 {
		return
	}
	if sampleRate <= 0 {
		o.dropped.Add(uint64(buf.Len()))
		return
	}

	now := o.clock()
	for _, ev := range buf.Events() {
		due := now + time.Duration(float64(ev.Offset)/sampleRate*float64(time.Second))
		if !o.enqueue(ev.Message, due) {
			o.dropped.Add(1)
		}
	}

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *Output) enqueue(msg []byte, due time.Duration) bool {
	if len(msg) == 0 || len(msg) > MaxMessageSize {
		return false
	}
	size := outHeaderSize + len(msg)
	if o.queue.Free() < size {
		return false
	}
	binary.LittleEndian.PutUint64(o.writeBuf[:outTimeBytes], uint64(due))
	o.writeBuf[outTimeBytes] = byte(len(msg))
	copy(o.writeBuf[outHeaderSize:], msg)
	_, err := o.queue.Write(o.writeBuf[:size])
	return err == nil
}

// Start launches the background sender. It stops when ctx is done or Stop is called.
func (o *Output) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.running.Store(true)

	go o.run(ctx, o.done)
}

// Stop halts the background sender and flushes anything still queued.
func (o *Output) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (o *Output) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer o.running.Store(false)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	var (
		pending    []byte
		pendingDue time.Duration
		hasPending bool
	)

	for {
		if !hasPending {
			pending, pendingDue, hasPending = o.dequeue()
		}

		if hasPending {
			wait := pendingDue - o.clock()
			if wait <= 0 {
				o.send(pending)
				hasPending = false
				continue
			}
			timer.Reset(wait)
		}

		select {
		case <-ctx.Done():
			if hasPending {
				o.send(pending)
			}
			o.flushQueued()
			return
		case <-o.notify:
		case <-timer.C:
		}
	}
}

func (o *Output) dequeue() ([]byte, time.Duration, bool) {
	if o.queue.Length() < outHeaderSize {
		return nil, 0, false
	}
	if n, err := o.queue.Read(o.readBuf[:outHeaderSize]); err != nil || n != outHeaderSize {
		return nil, 0, false
	}
	due := time.Duration(binary.LittleEndian.Uint64(o.readBuf[:outTimeBytes]))
	size := int(o.readBuf[outTimeBytes])
	body := o.readBuf[outHeaderSize : outHeaderSize+size]
	if n, err := o.queue.Read(body); err != nil || n != size {
		return nil, 0, false
	}
	return body, due, true
}

func (o *Output) flushQueued() {
	for {
		msg, _, ok := o.dequeue()
		if !ok {
			return
		}
		o.send(msg)
	}
}

func (o *Output) send(msg []byte) {
	if err := o.port.Send(msg); err != nil {
		if o.failed.Add(1) == 1 {
			o.log.Warn("midi send failed", logger.Error(err))
		}
		return
	}
	o.sent.Add(1)
}
