package device

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
)

const wavFormatPCM = 1

// OfflineConfig controls an offline render.
type OfflineConfig struct {
	BlockSize int
	// Outputs defaults to the input's channel count, or 2 without input.
	Outputs int
	// SampleRate is used only when there is no input file.
	SampleRate int
	// BitDepth of the output file; defaults to the input's, or 16.
	BitDepth int
	// Duration is the render length when there is no input file.
	Duration time.Duration
	// Tail is extra silence rendered after the input ends.
	Tail time.Duration
}

// Offline is a file-backed device. Start reads a WAV file block by block,
// runs the callback as fast as possible and writes the result as WAV. With
// no input it renders Duration of silence through the callback, which
// suits synth units.
type Offline struct {
	in  io.ReadSeeker
	out io.WriteSeeker
	cfg OfflineConfig
	log logger.Logger

	mu       sync.Mutex
	active   Config
	cancel   context.CancelFunc
	running  atomic.Bool
	rendered atomic.Uint64
}

var _ Device = (*Offline)(nil)

// NewOffline returns an offline device reading from in (may be nil) and writing to out.
func NewOffline(in io.ReadSeeker, out io.WriteSeeker, cfg OfflineConfig) (*Offline, error) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if out == nil || cfg.BlockSize < 0 || cfg.Outputs < 0 || cfg.SampleRate < 0 {
		return nil, errors.New(ErrInvalidFormat).
			Component(componentDevice).
			Category(errors.CategoryValidation).
			Context("block_size", cfg.BlockSize).
			Context("outputs", cfg.Outputs).
			Build()
	}
	if in == nil && cfg.Duration <= 0 {
		return nil, errors.Newf("offline render without input needs a duration").
			Component(componentDevice).
			Category(errors.CategoryValidation).
			Build()
	}
	return &Offline{in: in, out: out, cfg: cfg, log: GetLogger()}, nil
}

// Config returns the format of the current or last render.
func (o *Offline) Config() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Frames returns how many frames have been rendered.
func (o *Offline) Frames() uint64 { return o.rendered.Load() }

// Stop cancels a render in progress.
func (o *Offline) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running.Load() || o.cancel == nil {
		return ErrNotRunning
	}
	o.cancel()
	return nil
}

// Start renders the whole file and returns when done, on error, or when
// ctx is cancelled.
func (o *Offline) Start(ctx context.Context, cb Callback) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var dec *wav.Decoder
	inChans, sampleRate, inDepth := 0, o.cfg.SampleRate, 0
	if o.in != nil {
		dec = wav.NewDecoder(o.in)
		dec.ReadInfo()
		if err := validateWAV(dec); err != nil {
			return err
		}
		inChans, sampleRate, inDepth = int(dec.NumChans), int(dec.SampleRate), int(dec.BitDepth)
	}

	outDepth := o.cfg.BitDepth
	if outDepth == 0 {
		outDepth = max(inDepth, 16)
	}
	if outDepth != 16 && outDepth != 24 && outDepth != 32 {
		return formatError("bit_depth", outDepth)
	}
	outs := o.cfg.Outputs
	if outs == 0 {
		outs = inChans
		if outs == 0 {
			outs = 2
		}
	}

	block := o.cfg.BlockSize
	o.mu.Lock()
	o.cancel = cancel
	o.active = Config{
		SampleRate: float64(sampleRate),
		BlockSize:  block,
		Inputs:     inChans,
		Outputs:    outs,
		Name:       "offline",
	}
	active := o.active
	o.mu.Unlock()
	o.rendered.Store(0)

	enc := wav.NewEncoder(o.out, sampleRate, outDepth, outs, wavFormatPCM)

	inBuf := &audio.IntBuffer{
		Data:   make([]int, block*max(inChans, 1)),
		Format: &audio.Format{NumChannels: inChans, SampleRate: sampleRate},
	}
	outData := make([]int, block*outs)
	outBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: outs, SampleRate: sampleRate},
		SourceBitDepth: outDepth,
	}
	in := allocChannels(inChans, block)
	out := allocChannels(outs, block)

	remaining := durationFrames(o.cfg.Tail, sampleRate)
	if dec == nil {
		remaining = durationFrames(o.cfg.Duration, sampleRate)
	}

	start := time.Now()
	cb.AboutToStart(active)
	err := o.render(ctx, cb, dec, enc, inBuf, outBuf, outData, in, out, remaining, inDepth, outDepth)
	cb.Stopped()

	if closeErr := enc.Close(); err == nil && closeErr != nil {
		err = errors.New(closeErr).
			Component(componentDevice).
			Category(errors.CategoryFileIO).
			Context("operation", "close_output").
			Build()
	}
	if err != nil {
		return err
	}

	frames := o.rendered.Load()
	o.log.Info("offline render complete",
		logger.Uint64("frames", frames),
		logger.Float64("seconds", float64(frames)/float64(sampleRate)),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (o *Offline) render(ctx context.Context, cb Callback, dec *wav.Decoder, enc *wav.Encoder,
	inBuf, outBuf *audio.IntBuffer, outData []int, in, out [][]float32,
	remaining, inDepth, outDepth int,
) error {
	sampleRate := float64(inBuf.Format.SampleRate)
	inChans := len(in)
	outs := len(out)
	block := o.cfg.BlockSize
	inputDone := dec == nil

	for {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component(componentDevice).
				Category(errors.CategoryCancellation).
				Context("frames", o.rendered.Load()).
				Build()
		}

		frames := 0
		if !inputDone {
			n, err := dec.PCMBuffer(inBuf)
			if err != nil {
				return errors.New(err).
					Component(componentDevice).
					Category(errors.CategoryFileIO).
					Context("operation", "read_input").
					Build()
			}
			frames = n / inChans
			if frames == 0 {
				inputDone = true
			} else {
				intsToFloat(inBuf.Data[:n], in, frames, intScale(inDepth))
			}
		}

		if frames == 0 {
			if remaining <= 0 {
				return nil
			}
			frames = min(block, remaining)
			remaining -= frames
			for _, ch := range in {
				clear(ch[:frames])
			}
		}

		cb.Process(in, out, frames, BlockContext{
			HostTimeNs:  uint64(float64(o.rendered.Load()) / sampleRate * float64(time.Second)),
			HasHostTime: true,
		})

		floatToInts(out, outData, frames, intScale(outDepth))
		outBuf.Data = outData[:frames*outs]
		if err := enc.Write(outBuf); err != nil {
			return errors.New(err).
				Component(componentDevice).
				Category(errors.CategoryFileIO).
				Context("operation", "write_output").
				Build()
		}
		o.rendered.Add(uint64(frames))
	}
}

func validateWAV(dec *wav.Decoder) error {
	switch {
	case !dec.IsValidFile():
		return formatError("file", "not a valid WAV file")
	case dec.WavAudioFormat != wavFormatPCM:
		return formatError("wav_format", dec.WavAudioFormat)
	case dec.BitDepth != 16 && dec.BitDepth != 24 && dec.BitDepth != 32:
		return formatError("bit_depth", dec.BitDepth)
	case dec.NumChans == 0:
		return formatError("channels", dec.NumChans)
	}
	return nil
}

func formatError(field string, value any) error {
	return errors.New(fmt.Errorf("%w: %s %v", ErrInvalidFormat, field, value)).
		Component(componentDevice).
		Category(errors.CategoryValidation).
		Context(field, value).
		Build()
}

func durationFrames(d time.Duration, sampleRate int) int {
	if d <= 0 {
		return 0
	}
	return int(d.Seconds() * float64(sampleRate))
}
