// Package device drives audio hardware and offline files, delivering
// per-channel float32 blocks to a Callback.
package device

import "context"

// Config describes a running device stream.
type Config struct {
	SampleRate float64
	BlockSize  int
	Inputs     int // active input channels
	Outputs    int // active output channels
	Name       string
}

// BlockContext carries optional per-block timing from the driver.
type BlockContext struct {
	HostTimeNs  uint64
	HasHostTime bool
}

// Callback receives the device stream lifecycle and audio blocks.
//
// Process is called from the driver's real-time goroutine. inputs and
// outputs hold one slice per active channel, each at least numSamples long.
type Callback interface {
	AboutToStart(cfg Config)
	Process(inputs, outputs [][]float32, numSamples int, bc BlockContext)
	Stopped()
}

// Device is a stream that can be started and stopped with a Callback.
type Device interface {
	Start(ctx context.Context, cb Callback) error
	Stop() error
	Config() Config
}
