package transport

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/audiorouter/internal/device"
	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/midi"
)

// MIDIOutput receives the MIDI buffer after each processed block.
// midi.Output implements it.
type MIDIOutput interface {
	IsBackgroundRunning() bool
	SendBlock(buf *midi.Buffer, sampleRate float64)
	SendBlockNow(buf *midi.Buffer)
}

var _ device.Callback = (*Router)(nil)

// Router drives one attached Unit from a device callback.
//
// Lock order: Router's mutex, then the unit's CallbackLock.
type Router struct {
	mu sync.Mutex

	id      string
	log     logger.Logger
	metrics Metrics

	unit          Unit
	double        DoublePrecisionUnit // set while the unit processes float64
	prepared      bool
	misconfigured bool
	preferDouble  bool

	sampleRate      float64
	blockSize       int
	deviceChannels  ChannelCount
	defaultChannels ChannelCount
	unitChannels    ChannelCount

	clock       Clock
	position    PositionInfo
	hasPosition bool

	// Callback storage, resized only by control methods.
	scratch        [][]float32
	conv           [][]float64
	scratchSamples int
	table          [][]float32
	view           Buffer[float32]
	convView       Buffer[float64]

	midiIn    *midi.Buffer
	collector *midi.Collector
	midiOut   MIDIOutput
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics installs an instrumentation sink.
func WithMetrics(m Metrics) Option {
	return func(r *Router) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithDoublePrecision sets the initial precision preference.
func WithDoublePrecision(enabled bool) Option {
	return func(r *Router) { r.preferDouble = enabled }
}

// WithTempo sets the initial tempo. Out-of-range values are ignored.
func WithTempo(bpm float64) Option {
	return func(r *Router) {
		if validTempo(bpm) {
			r.clock.SetTempo(bpm)
		}
	}
}

// WithCollector replaces the inbound MIDI collector.
func WithCollector(c *midi.Collector) Option {
	return func(r *Router) {
		if c != nil {
			r.collector = c
		}
	}
}

// WithMIDIBufferSize sizes the per-block MIDI buffer.
func WithMIDIBufferSize(maxEvents, arenaBytes int) Option {
	return func(r *Router) { r.midiIn = midi.NewBuffer(maxEvents, arenaBytes) }
}

// NewRouter returns a router with no unit attached and no device running.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		id:      uuid.NewString(),
		metrics: noopMetrics{},
		clock:   NewClock(DefaultTempo),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = GetLogger()
	}
	r.log = r.log.With(logger.String("router_id", r.id))
	if r.collector == nil {
		r.collector = midi.NewCollector(midi.DefaultQueueBytes)
	}
	if r.midiIn == nil {
		r.midiIn = midi.NewBuffer(midi.DefaultBufferEvents, midi.DefaultArenaBytes)
	}
	r.shrinkLocked()
	r.metrics.SetTempo(r.clock.Tempo())
	return r
}

// ID returns the router's session identifier.
func (r *Router) ID() string { return r.id }

// Collector returns the inbound MIDI collector.
func (r *Router) Collector() *midi.Collector { return r.collector }

// HandleIncomingMIDI queues a message from a MIDI input port.
func (r *Router) HandleIncomingMIDI(msg []byte) error {
	if r.collector == nil {
		return ErrNoMIDICollector
	}
	return r.collector.Add(msg)
}

// attachReport carries what attachLocked did so it can be logged after unlocking.
type attachReport struct {
	unit      string
	layout    ChannelCount
	accepted  bool
	prepared  bool
	precision Precision
}

// Attach makes u the active unit. Attaching the current unit is a no-op.
//
// If the device is running the unit is negotiated, configured and prepared
// before it is installed; the previous unit is released afterwards. A
// configuration failure leaves u attached but silent and is returned as an
// error matching ErrLayoutRejected.
func (r *Router) Attach(u Unit) error {
	r.mu.Lock()
	if sameUnit(u, r.unit) {
		r.mu.Unlock()
		return nil
	}
	report, err := r.attachLocked(u)
	r.mu.Unlock()

	r.logAttach(report, err)
	return err
}

// Detach removes the active unit, releasing it if prepared.
func (r *Router) Detach() error {
	return r.Attach(nil)
}

func (r *Router) attachLocked(u Unit) (attachReport, error) {
	report := attachReport{unit: UnitName(u)}
	if sameUnit(u, r.unit) {
		return report, nil
	}

	r.clock.Reset()
	r.position = PositionInfo{}
	r.hasPosition = false
	r.double = nil
	r.unitChannels = ChannelCount{}

	var err error
	prepared, misconfigured := false, false

	if u != nil {
		r.defaultChannels = u.DefaultLayout()
		if ph, ok := u.(PlayHeadReceiver); ok {
			ph.SetPlayHead(routerPlayHead{r: r})
		}
	}

	if u != nil && r.sampleRate > 0 && r.blockSize > 0 {
		layout, accepted := negotiate(u, r.defaultChannels, r.deviceChannels)
		r.unitChannels = layout
		report.layout, report.accepted = layout, accepted
		r.metrics.RecordNegotiation(layout, layout != r.deviceChannels)

		if cfgErr := u.Configure(layout, r.sampleRate, r.blockSize); cfgErr != nil {
			misconfigured = true
			err = errors.New(fmt.Errorf("%w: %s: %w", ErrLayoutRejected, layout, cfgErr)).
				Component(componentTransport).
				Category(errors.CategoryNegotiation).
				Context("unit", report.unit).
				Context("layout", layout.String()).
				DeviceContext("", r.sampleRate, r.blockSize).
				Build()
		} else {
			report.precision = r.applyPrecisionLocked(u)
			u.Prepare(r.sampleRate, r.blockSize)
			prepared = true
		}
	}

	old, oldPrepared := r.unit, r.prepared
	r.unit, r.prepared, r.misconfigured = u, prepared, misconfigured
	if misconfigured {
		r.double = nil
	}
	r.resizeLocked()

	if old != nil {
		if oldPrepared {
			old.ReleaseResources()
		}
		if ph, ok := old.(PlayHeadReceiver); ok {
			ph.SetPlayHead(nil)
		}
	}

	report.prepared = prepared
	if u != nil {
		r.metrics.RecordAttach(report.unit, err == nil)
	}
	return report, err
}

// applyPrecisionLocked selects float64 processing when both the unit and the
// router preference allow it.
func (r *Router) applyPrecisionLocked(u Unit) Precision {
	r.double = nil
	d, ok := u.(DoublePrecisionUnit)
	if !ok {
		return SinglePrecision
	}
	p := SinglePrecision
	if r.preferDouble && d.SupportsDoublePrecision() {
		p = DoublePrecision
		r.double = d
	}
	d.SetPrecision(p)
	return p
}

func (r *Router) logAttach(report attachReport, err error) {
	switch {
	case err != nil:
		r.log.Warn("unit attached without a usable layout; output will be silent",
			logger.String("unit", report.unit),
			logger.String("layout", report.layout.String()),
			logger.Error(err))
	case report.unit == "":
		r.log.Info("unit detached")
	case !report.prepared:
		r.log.Info("unit attached; waiting for device start", logger.String("unit", report.unit))
	default:
		if !report.accepted {
			r.log.Warn("unit accepted no candidate layout; using device layout",
				logger.String("unit", report.unit),
				logger.String("layout", report.layout.String()))
		}
		r.log.Info("unit attached",
			logger.String("unit", report.unit),
			logger.Int("ins", report.layout.Ins),
			logger.Int("outs", report.layout.Outs),
			logger.String("precision", report.precision.String()))
	}
}

// resizeLocked sizes callback storage for the current device and unit layouts.
func (r *Router) resizeLocked() {
	channels := max(r.deviceChannels.Max(), r.unitChannels.Max(), 1)
	samples := max(r.blockSize, 1)
	if len(r.scratch) == channels && r.scratchSamples == samples {
		return
	}
	r.scratch = allocChannels[float32](channels, samples)
	r.conv = allocChannels[float64](channels, samples)
	r.table = make([][]float32, channels)
	r.scratchSamples = samples
}

// shrinkLocked drops callback storage to a single one-sample channel.
func (r *Router) shrinkLocked() {
	r.scratch = allocChannels[float32](1, 1)
	r.conv = allocChannels[float64](1, 1)
	r.table = make([][]float32, max(r.unitChannels.Max(), 1))
	r.scratchSamples = 1
}

// SetTempo sets the tempo used for musical position, effective from the next block.
func (r *Router) SetTempo(bpm float64) error {
	if !validTempo(bpm) {
		return errors.New(fmt.Errorf("%w: %g bpm", ErrInvalidTempo, bpm)).
			Component(componentTransport).
			Category(errors.CategoryValidation).
			Context("bpm", bpm).
			Context("max_bpm", MaxTempo).
			Build()
	}

	r.mu.Lock()
	r.clock.SetTempo(bpm)
	r.mu.Unlock()

	r.metrics.SetTempo(bpm)
	return nil
}

func validTempo(bpm float64) bool {
	return !math.IsNaN(bpm) && bpm > 0 && bpm <= MaxTempo
}

// Tempo returns the current tempo in BPM.
func (r *Router) Tempo() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock.Tempo()
}

// SetDoublePrecision changes the precision preference. An attached unit is
// released, switched and prepared again.
func (r *Router) SetDoublePrecision(enabled bool) {
	r.mu.Lock()
	if enabled == r.preferDouble {
		r.mu.Unlock()
		return
	}
	r.preferDouble = enabled

	precision := SinglePrecision
	unit := r.unit
	if unit != nil && !r.misconfigured {
		if r.prepared {
			unit.ReleaseResources()
		}
		precision = r.applyPrecisionLocked(unit)
		if r.prepared {
			unit.Prepare(r.sampleRate, r.blockSize)
		}
	}
	r.mu.Unlock()

	r.metrics.SetPrecision(precision)
	r.log.Info("processing precision changed",
		logger.Bool("double_requested", enabled),
		logger.String("precision", precision.String()),
		logger.String("unit", UnitName(unit)))
}

// DoublePrecision reports the precision preference.
func (r *Router) DoublePrecision() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preferDouble
}

// SetMIDIOutput sets where generated MIDI goes; nil disables forwarding.
func (r *Router) SetMIDIOutput(out MIDIOutput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.midiOut = out
}

// CurrentUnit returns the attached unit, or nil.
func (r *Router) CurrentUnit() Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unit
}

// Position returns the position published for the most recent processed block.
func (r *Router) Position() (PositionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position, r.hasPosition
}

// SampleCount returns the samples processed since the current unit was attached.
func (r *Router) SampleCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock.Samples()
}

// AboutToStart records the device format and re-attaches the current unit
// so it renegotiates and prepares for the new stream.
func (r *Router) AboutToStart(cfg device.Config) {
	r.mu.Lock()
	r.sampleRate = cfg.SampleRate
	r.blockSize = cfg.BlockSize
	r.deviceChannels = ChannelCount{Ins: cfg.Inputs, Outs: cfg.Outputs}
	r.resizeLocked()

	if r.collector != nil {
		r.collector.Reset(cfg.SampleRate)
	}

	var (
		report   attachReport
		err      error
		reattach bool
	)
	if u := r.unit; u != nil {
		if r.prepared {
			u.ReleaseResources()
			r.prepared = false
		}
		_, _ = r.attachLocked(nil)
		report, err = r.attachLocked(u)
		reattach = true
	}
	r.mu.Unlock()

	r.metrics.RecordDeviceEvent("start")
	r.log.Info("device starting",
		logger.String("device", cfg.Name),
		logger.Float64("sample_rate", cfg.SampleRate),
		logger.Int("block_size", cfg.BlockSize),
		logger.Int("inputs", cfg.Inputs),
		logger.Int("outputs", cfg.Outputs))
	if reattach {
		r.logAttach(report, err)
	}
}

// Stopped releases the unit and forgets the device format. The unit stays attached.
func (r *Router) Stopped() {
	r.mu.Lock()
	if r.unit != nil && r.prepared {
		r.unit.ReleaseResources()
	}
	r.sampleRate = 0
	r.blockSize = 0
	r.prepared = false
	r.shrinkLocked()
	r.mu.Unlock()

	r.metrics.RecordDeviceEvent("stop")
	r.log.Info("device stopped")
}

// Process renders one block. It is called from the device's real-time
// goroutine and never allocates.
func (r *Router) Process(inputs, outputs [][]float32, numSamples int, bc device.BlockContext) {
	start := time.Now()

	r.mu.Lock()
	outcome := r.processLocked(inputs, outputs, numSamples, bc)
	r.metrics.RecordBlock(outcome, numSamples, time.Since(start))
	r.mu.Unlock()
}

func (r *Router) processLocked(inputs, outputs [][]float32, n int, bc device.BlockContext) BlockOutcome {
	if n <= 0 {
		return BlockSilentUnprepared
	}
	if r.sampleRate <= 0 || r.blockSize <= 0 || n > r.scratchSamples || !covers(inputs, n) || !covers(outputs, n) {
		silence(outputs, n)
		return BlockSilentUnprepared
	}

	r.midiIn.Clear()
	if r.collector != nil {
		r.collector.Drain(r.midiIn, n)
		if count := r.midiIn.Len(); count > 0 {
			r.metrics.RecordMIDIEvents(count)
		}
	}

	slots := mapIO(inputs, outputs, n, r.unitChannels.Ins, r.unitChannels.Outs, r.scratch, r.table)
	r.view.set(r.table[:slots], n)

	u := r.unit
	switch {
	case u == nil:
		silence(outputs, n)
		return BlockSilentNoUnit
	case r.misconfigured || !r.prepared:
		silence(outputs, n)
		return BlockSilentMisconfigured
	}

	lock := u.CallbackLock()
	lock.Lock()

	if u.IsSuspended() {
		lock.Unlock()
		silence(outputs, n)
		return BlockSilentSuspended
	}

	r.position = PositionAt(r.clock.Samples(), r.sampleRate, r.clock.Tempo(), bc.HostTimeNs, bc.HasHostTime)
	r.hasPosition = true
	r.clock.Advance(n)

	if r.double != nil {
		r.convView.set(r.conv[:slots], n)
		convertInto(&r.convView, &r.view)
		r.double.ProcessBlockDouble(&r.convView, r.midiIn)
		convertInto(&r.view, &r.convView)
	} else {
		u.ProcessBlock(&r.view, r.midiIn)
	}

	if r.midiOut != nil {
		if r.midiOut.IsBackgroundRunning() {
			r.midiOut.SendBlock(r.midiIn, r.sampleRate)
		} else {
			r.midiOut.SendBlockNow(r.midiIn)
		}
	}

	lock.Unlock()
	return BlockProcessed
}

func covers(channels [][]float32, n int) bool {
	for _, ch := range channels {
		if len(ch) < n {
			return false
		}
	}
	return true
}

// routerPlayHead exposes the position of the block being processed. It reads
// without locking because units only call it from ProcessBlock, where the
// router's mutex is already held.
type routerPlayHead struct {
	r *Router
}

func (p routerPlayHead) Position() (PositionInfo, bool) {
	return p.r.position, p.r.hasPosition
}

// Status is a point-in-time snapshot of the router for the control API.
type Status struct {
	ID              string       `json:"id"`
	Unit            string       `json:"unit,omitempty"`
	Prepared        bool         `json:"prepared"`
	Misconfigured   bool         `json:"misconfigured"`
	Suspended       bool         `json:"suspended"`
	Running         bool         `json:"running"`
	SampleRate      float64      `json:"sample_rate"`
	BlockSize       int          `json:"block_size"`
	Device          ChannelCount `json:"device"`
	Layout          ChannelCount `json:"layout"`
	DoublePrecision bool         `json:"double_precision"`
	Precision       string       `json:"precision"`
	Tempo           float64      `json:"tempo"`
	SampleCount     uint64       `json:"sample_count"`
	Seconds         float64      `json:"seconds"`
	PPQ             float64      `json:"ppq"`
	BarsBeats       string       `json:"bars_beats"`
	Timecode        string       `json:"timecode"`
	MIDIOutput      bool         `json:"midi_output"`
	MIDIPending     int          `json:"midi_pending"`
	MIDIDropped     uint64       `json:"midi_dropped"`
}

// Status returns a snapshot of the router state.
func (r *Router) Status() Status {
	r.mu.Lock()
	s := Status{
		ID:              r.id,
		Unit:            UnitName(r.unit),
		Prepared:        r.prepared,
		Misconfigured:   r.misconfigured,
		Running:         r.sampleRate > 0 && r.blockSize > 0,
		SampleRate:      r.sampleRate,
		BlockSize:       r.blockSize,
		Device:          r.deviceChannels,
		Layout:          r.unitChannels,
		DoublePrecision: r.preferDouble,
		Precision:       SinglePrecision.String(),
		Tempo:           r.clock.Tempo(),
		SampleCount:     r.clock.Samples(),
		MIDIOutput:      r.midiOut != nil,
	}
	if r.double != nil {
		s.Precision = DoublePrecision.String()
	}
	unit := r.unit
	r.mu.Unlock()

	if unit != nil {
		s.Suspended = unit.IsSuspended()
	}
	if r.collector != nil {
		s.MIDIPending = r.collector.Pending()
		s.MIDIDropped = r.collector.Dropped()
	}
	s.Seconds = SecondsAt(s.SampleCount, s.SampleRate)
	s.PPQ = QuarterNotesAt(s.SampleCount, s.SampleRate, s.Tempo)
	s.BarsBeats = FormatBarsBeats(s.PPQ, DefaultTimeSignature)
	s.Timecode = FormatTimecode(s.Seconds)
	return s
}
