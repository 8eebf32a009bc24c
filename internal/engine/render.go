package engine

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/device"
	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
)

// RenderOptions describes an offline render.
type RenderOptions struct {
	Input    string        // WAV file to process, empty to render from silence
	Output   string        // WAV file to write
	Duration time.Duration // render length without Input
	Tail     time.Duration // silence appended after Input
	BitDepth int           // 16, 24 or 32; 0 keeps the input's depth
}

// RenderResult summarizes a finished render.
type RenderResult struct {
	Frames     uint64
	SampleRate float64
	Elapsed    time.Duration
}

// Seconds returns the rendered audio length.
func (r RenderResult) Seconds() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(r.Frames) / r.SampleRate
}

// Render runs the configured unit over a WAV file, or over silence, and
// writes the result. The output file is removed when the render fails.
func Render(ctx context.Context, settings *conf.Settings, opts RenderOptions) (result RenderResult, err error) {
	if opts.Output == "" {
		return result, errors.Newf("render needs an output file").
			Component("engine").
			Category(errors.CategoryValidation).
			Build()
	}

	router, err := NewRouter(settings)
	if err != nil {
		return result, err
	}

	var in io.ReadSeeker
	if opts.Input != "" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return result, errors.FileError(err, opts.Input, 0)
		}
		defer f.Close()
		in = f
	}

	out, err := os.Create(opts.Output)
	if err != nil {
		return result, errors.FileError(err, opts.Output, 0)
	}
	defer func() {
		if closeErr := out.Close(); err == nil && closeErr != nil {
			err = errors.FileError(closeErr, opts.Output, 0)
		}
		if err != nil {
			_ = os.Remove(opts.Output)
		}
	}()

	channels := DeviceChannels(settings.Audio, router.CurrentUnit())
	offlineCfg := device.OfflineConfig{
		BlockSize:  settings.Audio.BlockSize,
		SampleRate: int(settings.Audio.SampleRate),
		BitDepth:   opts.BitDepth,
		Duration:   opts.Duration,
		Tail:       opts.Tail,
	}
	// An input file fixes the output channel count unless it is set explicitly.
	if in == nil || settings.Audio.OutputChannels > 0 {
		offlineCfg.Outputs = channels.Outs
	}

	dev, err := device.NewOffline(in, out, offlineCfg)
	if err != nil {
		return result, err
	}

	start := time.Now()
	if err := dev.Start(ctx, router); err != nil {
		category := errors.CategoryAudioDevice
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			category = ee.Category
		}
		return result, errors.New(err).
			Component("engine").
			Category(category).
			Timing("render", time.Since(start)).
			Context("output", opts.Output).
			Build()
	}

	result = RenderResult{
		Frames:     dev.Frames(),
		SampleRate: dev.Config().SampleRate,
		Elapsed:    time.Since(start),
	}
	GetLogger().Info("render finished",
		logger.String("output", opts.Output),
		logger.String("unit", settings.Transport.Unit),
		logger.Uint64("frames", result.Frames),
		logger.Float64("seconds", result.Seconds()),
		logger.Duration("elapsed", result.Elapsed))
	return result, nil
}
