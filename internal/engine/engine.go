// Package engine assembles a transport router, its unit and its devices
// from settings, for live routing and offline rendering.
package engine

import (
	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/logger"
	"github.com/tphakala/audiorouter/internal/midi"
	"github.com/tphakala/audiorouter/internal/transport"
	"github.com/tphakala/audiorouter/internal/units"
)

// GetLogger returns the engine module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("engine")
}

// fallbackOutputs is used when neither the settings nor the unit ask for
// any audio channels, so the device still has a stream to clock from.
const fallbackOutputs = 2

// NewRouter creates a router configured from settings with the configured
// unit attached. An empty unit name leaves the router empty.
func NewRouter(settings *conf.Settings, opts ...transport.Option) (*transport.Router, error) {
	base := []transport.Option{
		transport.WithTempo(settings.Transport.Tempo),
		transport.WithDoublePrecision(settings.Transport.DoublePrecision),
		transport.WithCollector(midi.NewCollector(settings.MIDI.QueueSize)),
	}
	router := transport.NewRouter(append(base, opts...)...)

	if settings.Transport.Unit == "" {
		return router, nil
	}
	unit, err := units.New(settings.Transport.Unit, settings.Transport.Options)
	if err != nil {
		return nil, err
	}
	// The device is not running yet, so this only records the unit.
	if err := router.Attach(unit); err != nil {
		return nil, err
	}
	return router, nil
}

// DeviceChannels picks the device's channel counts: explicit settings
// first, then the unit's default layout.
func DeviceChannels(audio conf.AudioSettings, unit transport.Unit) transport.ChannelCount {
	var def transport.ChannelCount
	if unit != nil {
		def = unit.DefaultLayout()
	}

	c := transport.ChannelCount{Ins: audio.InputChannels, Outs: audio.OutputChannels}
	if c.Ins == 0 {
		c.Ins = def.Ins
	}
	if c.Outs == 0 {
		c.Outs = def.Outs
	}
	if c.Ins == 0 && c.Outs == 0 {
		c.Outs = fallbackOutputs
	}
	return c
}
