package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"
	"golang.org/x/time/rate"

	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
)

// Malgo stream defaults.
const (
	DefaultSampleRate = 48000
	DefaultBlockSize  = 512
	restartDelay      = time.Second
)

// MalgoConfig selects the backend, endpoint and stream format of a Malgo device.
type MalgoConfig struct {
	Backend    string
	Device     string // capture and playback device name, "" for the system default
	SampleRate int
	BlockSize  int
	Inputs     int
	Outputs    int
}

// Malgo is a full-duplex sound card stream. It opens capture, playback or
// both depending on the channel counts and always exchanges float32 samples
// with the backend.
type Malgo struct {
	cfg      MalgoConfig
	log      logger.Logger
	restarts *rate.Limiter

	mu     sync.Mutex
	mctx   *malgo.AllocatedContext
	dev    *malgo.Device
	cb     Callback
	active Config
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running  atomic.Bool
	stopping atomic.Bool

	// Owned by the backend's audio thread while running.
	in, out [][]float32
	epoch   time.Time
}

var _ Device = (*Malgo)(nil)

// MalgoOption configures a Malgo device.
type MalgoOption func(*Malgo)

// WithMalgoLogger sets the device logger.
func WithMalgoLogger(l logger.Logger) MalgoOption {
	return func(m *Malgo) {
		if l != nil {
			m.log = l
		}
	}
}

// WithRestartLimit bounds how often the stream is restarted after the
// backend stops it unexpectedly.
func WithRestartLimit(every time.Duration, burst int) MalgoOption {
	return func(m *Malgo) { m.restarts = rate.NewLimiter(rate.Every(every), burst) }
}

// NewMalgo validates cfg and returns a stopped device.
func NewMalgo(cfg MalgoConfig, opts ...MalgoOption) (*Malgo, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.SampleRate < 0 || cfg.BlockSize < 0 || cfg.Inputs < 0 || cfg.Outputs < 0 || cfg.Inputs+cfg.Outputs == 0 {
		return nil, errors.New(ErrInvalidFormat).
			Component(componentDevice).
			Category(errors.CategoryValidation).
			Context("sample_rate", cfg.SampleRate).
			Context("block_size", cfg.BlockSize).
			Context("inputs", cfg.Inputs).
			Context("outputs", cfg.Outputs).
			Build()
	}
	if _, err := ResolveBackend(cfg.Backend); err != nil {
		return nil, err
	}

	m := &Malgo{
		cfg:      cfg,
		log:      GetLogger(),
		restarts: rate.NewLimiter(rate.Every(time.Minute), 3),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Malgo) deviceType() malgo.DeviceType {
	switch {
	case m.cfg.Inputs > 0 && m.cfg.Outputs > 0:
		return malgo.Duplex
	case m.cfg.Inputs > 0:
		return malgo.Capture
	default:
		return malgo.Playback
	}
}

// Start opens the stream and begins calling cb. The stream stops when ctx
// is cancelled or Stop is called.
func (m *Malgo) Start(ctx context.Context, cb Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return ErrAlreadyRunning
	}

	backend, err := ResolveBackend(m.cfg.Backend)
	if err != nil {
		return err
	}
	mctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return m.deviceError(err, "init_context")
	}

	dcfg := malgo.DefaultDeviceConfig(m.deviceType())
	dcfg.SampleRate = uint32(m.cfg.SampleRate)
	dcfg.PeriodSizeInFrames = uint32(m.cfg.BlockSize)
	dcfg.Alsa.NoMMap = 1
	if m.cfg.Inputs > 0 {
		id, err := m.findDevice(mctx, Capture)
		if err != nil {
			_ = mctx.Uninit()
			return err
		}
		dcfg.Capture.DeviceID = id
		dcfg.Capture.Format = malgo.FormatF32
		dcfg.Capture.Channels = uint32(m.cfg.Inputs)
	}
	if m.cfg.Outputs > 0 {
		id, err := m.findDevice(mctx, Playback)
		if err != nil {
			_ = mctx.Uninit()
			return err
		}
		dcfg.Playback.DeviceID = id
		dcfg.Playback.Format = malgo.FormatF32
		dcfg.Playback.Channels = uint32(m.cfg.Outputs)
	}

	dev, err := malgo.InitDevice(mctx.Context, dcfg, malgo.DeviceCallbacks{
		Data: m.onData,
		Stop: m.onStop,
	})
	if err != nil {
		_ = mctx.Uninit()
		return m.deviceError(err, "init_device")
	}

	name := m.cfg.Device
	if name == "" {
		name = "default"
	}
	m.active = Config{
		SampleRate: float64(dev.SampleRate()),
		BlockSize:  m.cfg.BlockSize,
		Inputs:     m.cfg.Inputs,
		Outputs:    m.cfg.Outputs,
		Name:       name,
	}
	m.in = allocChannels(m.cfg.Inputs, m.cfg.BlockSize)
	m.out = allocChannels(m.cfg.Outputs, m.cfg.BlockSize)
	m.cb = cb
	m.epoch = time.Now()

	cb.AboutToStart(m.active)

	m.stopping.Store(false)
	if err := dev.Start(); err != nil {
		cb.Stopped()
		dev.Uninit()
		_ = mctx.Uninit()
		return m.deviceError(err, "start_device")
	}

	m.mctx, m.dev = mctx, dev
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.running.Store(true)

	runCtx := m.runCtx
	m.wg.Go(func() {
		<-runCtx.Done()
		m.teardown()
	})

	m.log.Info("audio device started",
		logger.String("device", name),
		logger.Float64("sample_rate", m.active.SampleRate),
		logger.Int("block_size", m.active.BlockSize),
		logger.Int("inputs", m.active.Inputs),
		logger.Int("outputs", m.active.Outputs))
	return nil
}

// Stop closes the stream and waits until the callback has been told.
func (m *Malgo) Stop() error {
	m.mu.Lock()
	if !m.running.Load() {
		m.mu.Unlock()
		return ErrNotRunning
	}
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	return nil
}

// Config returns the format of the running stream.
func (m *Malgo) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Malgo) teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopping.Store(true)
	if m.dev != nil {
		_ = m.dev.Stop()
		m.dev.Uninit()
		m.dev = nil
	}
	if m.mctx != nil {
		_ = m.mctx.Uninit()
		m.mctx.Free()
		m.mctx = nil
	}
	if m.cb != nil {
		m.cb.Stopped()
	}
	m.running.Store(false)
	m.log.Info("audio device stopped", logger.String("device", m.active.Name))
}

func (m *Malgo) findDevice(mctx *malgo.AllocatedContext, kind Kind) (unsafe.Pointer, error) {
	if m.cfg.Device == "" || m.cfg.Device == "default" {
		return nil, nil
	}
	devices, err := mctx.Devices(kind.malgoType())
	if err != nil {
		return nil, m.deviceError(err, "enumerate_devices")
	}
	info, err := SelectDevice(toInfos(devices), m.cfg.Device)
	if err != nil {
		return nil, err
	}
	return devices[info.Index].ID.Pointer(), nil
}

// onData runs on the backend's audio thread. Periods longer than the
// configured block are split so the callback never sees more than BlockSize.
func (m *Malgo) onData(output, input []byte, frameCount uint32) {
	frames := int(frameCount)
	block := m.active.BlockSize
	for done := 0; done < frames; {
		n := min(block, frames-done)
		deinterleave(input, m.in, done, n)
		m.cb.Process(m.in, m.out, n, BlockContext{
			HostTimeNs:  uint64(time.Since(m.epoch)),
			HasHostTime: true,
		})
		interleave(m.out, output, done, n)
		done += n
	}
}

// onStop is called by the backend whenever the stream stops, including
// during teardown.
func (m *Malgo) onStop() {
	if m.stopping.Load() || !m.running.Load() {
		return
	}

	if !m.restarts.Allow() {
		m.log.Error("audio device keeps stopping; giving up",
			logger.String("device", m.active.Name))
		m.cancel()
		return
	}

	m.log.Warn("audio device stopped unexpectedly; restarting",
		logger.String("device", m.active.Name),
		logger.Duration("delay", restartDelay))

	ctx := m.runCtx
	m.wg.Go(func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.stopping.Load() || m.dev == nil {
			return
		}
		if err := m.dev.Start(); err != nil {
			m.log.Error("audio device restart failed",
				logger.String("device", m.active.Name),
				logger.Error(m.deviceError(err, "restart_device")))
		}
	})
}

func (m *Malgo) deviceError(err error, operation string) error {
	return errors.New(err).
		Component(componentDevice).
		Category(errors.CategoryAudioDevice).
		Context("operation", operation).
		Context("backend", m.cfg.Backend).
		DeviceContext(m.cfg.Device, float64(m.cfg.SampleRate), m.cfg.BlockSize).
		Build()
}

func allocChannels(n, size int) [][]float32 {
	backing := make([]float32, n*size)
	channels := make([][]float32, n)
	for i := range channels {
		channels[i] = backing[i*size : (i+1)*size : (i+1)*size]
	}
	return channels
}
