package engine

import (
	"context"
	"fmt"

	"gitlab.com/gomidi/midi/v2/drivers"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audiorouter/internal/api"
	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/device"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/midi"
	"github.com/tphakala/audiorouter/internal/observability"
	"github.com/tphakala/audiorouter/internal/observability/metrics"
	"github.com/tphakala/audiorouter/internal/sysinfo"
	"github.com/tphakala/audiorouter/internal/transport"
)

// RealtimeOptions carries runtime dependencies that do not come from settings.
type RealtimeOptions struct {
	// MIDIDriver provides MIDI ports. Nil disables MIDI even when ports are configured.
	MIDIDriver drivers.Driver
}

// Realtime runs the router against the configured sound card until ctx is
// cancelled, serving the control API and metrics when enabled.
func Realtime(ctx context.Context, settings *conf.Settings, opts RealtimeOptions) error {
	log := GetLogger()
	log.Info("host", sysinfo.Collect(ctx).LogFields()...)

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	router, err := NewRouter(settings, transport.WithMetrics(m.Transport))
	if err != nil {
		return err
	}

	midiIO, err := openMIDI(ctx, settings.MIDI, opts.MIDIDriver, router)
	if err != nil {
		return err
	}
	defer midiIO.Close()
	if err := m.RegisterMIDI(router.Collector(), midiIO.stats()); err != nil {
		log.Warn("MIDI metrics unavailable", logger.Error(err))
	}

	channels := DeviceChannels(settings.Audio, router.CurrentUnit())
	dev, err := device.NewMalgo(device.MalgoConfig{
		Backend:    settings.Audio.Backend,
		Device:     settings.Audio.Device,
		SampleRate: int(settings.Audio.SampleRate),
		BlockSize:  settings.Audio.BlockSize,
		Inputs:     channels.Ins,
		Outputs:    channels.Outs,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := dev.Start(gctx, router); err != nil {
		return err
	}
	defer func() {
		if err := dev.Stop(); err != nil {
			log.Debug("audio device already stopped", logger.Error(err))
		}
	}()

	if settings.HTTP.Enabled {
		srv, err := api.New(api.ConfigFromSettings(settings), router,
			api.WithMetrics(m),
			api.WithDeviceLister(device.NewLister(settings.Audio.Backend, device.DefaultListTTL)))
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
	}

	if settings.Metrics.Enabled {
		endpoint, err := observability.NewEndpoint(settings, m)
		if err != nil {
			return err
		}
		g.Go(func() error { return endpoint.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	log.Info("audio router running",
		logger.String("router_id", router.ID()),
		logger.String("unit", transport.UnitName(router.CurrentUnit())),
		logger.Float64("tempo", router.Tempo()))

	err = g.Wait()
	status := router.Status()
	log.Info("audio router stopped",
		logger.Uint64("samples", status.SampleCount),
		logger.String("timecode", status.Timecode),
		logger.Uint64("midi_dropped", status.MIDIDropped))
	return err
}

// midiIO holds the open MIDI ports of a realtime session.
type midiIO struct {
	stopInput func()
	port      drivers.Out
	output    *midi.Output
}

// openMIDI connects the configured ports to router. Ports are opened before
// the device starts; an unknown port name is an error.
func openMIDI(ctx context.Context, settings conf.MIDISettings, drv drivers.Driver, router *transport.Router) (*midiIO, error) {
	mio := &midiIO{}
	if settings.Input == "" && settings.Output == "" {
		return mio, nil
	}
	if drv == nil {
		GetLogger().Warn("MIDI ports configured but no MIDI driver available",
			logger.String("input", settings.Input),
			logger.String("output", settings.Output))
		return mio, nil
	}

	if settings.Input != "" {
		stop, err := midi.OpenInput(drv, settings.Input, router.HandleIncomingMIDI)
		if err != nil {
			return nil, err
		}
		mio.stopInput = stop
	}

	if settings.Output != "" {
		port, err := midi.OpenOutput(drv, settings.Output)
		if err != nil {
			mio.Close()
			return nil, err
		}
		mio.port = port
		out, err := midi.NewOutput(port, settings.QueueSize)
		if err != nil {
			mio.Close()
			return nil, err
		}
		mio.output = out
		if settings.BackgroundSender {
			out.Start(ctx)
		}
		router.SetMIDIOutput(out)
	}
	return mio, nil
}

// stats returns the output statistics source, or nil without an output.
func (m *midiIO) stats() metrics.MIDIOutputStats {
	if m.output == nil {
		return nil
	}
	return m.output
}

// Close stops the input listener and the output sender and closes the ports.
func (m *midiIO) Close() {
	if m.stopInput != nil {
		m.stopInput()
		m.stopInput = nil
	}
	if m.output != nil {
		m.output.Stop()
		m.output = nil
	}
	if m.port != nil {
		if err := m.port.Close(); err != nil {
			GetLogger().Debug("closing MIDI output failed", logger.Error(err))
		}
		m.port = nil
	}
}
