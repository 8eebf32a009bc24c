package midi

import (
	"fmt"
	"strings"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
)

// PortInfo describes a MIDI port exposed by a driver.
type PortInfo struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

type port interface {
	Number() int
	String() string
}

// ListPorts returns the input and output ports of drv.
func ListPorts(drv drivers.Driver) (ins, outs []PortInfo, err error) {
	inPorts, err := drv.Ins()
	if err != nil {
		return nil, nil, portError(err, "list inputs", "")
	}
	outPorts, err := drv.Outs()
	if err != nil {
		return nil, nil, portError(err, "list outputs", "")
	}
	return portInfos(inPorts), portInfos(outPorts), nil
}

func portInfos[P port](ports []P) []PortInfo {
	infos := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, PortInfo{Number: p.Number(), Name: p.String()})
	}
	return infos
}

// selectPort picks the port named name. An exact match wins over a
// case-insensitive substring match.
func selectPort[P port](ports []P, name string) (P, error) {
	var zero P
	for _, p := range ports {
		if p.String() == name {
			return p, nil
		}
	}
	needle := strings.ToLower(name)
	for _, p := range ports {
		if needle != "" && strings.Contains(strings.ToLower(p.String()), needle) {
			return p, nil
		}
	}
	return zero, errors.New(fmt.Errorf("%w: %q", ErrPortNotFound, name)).
		Component(componentMIDI).
		Category(errors.CategoryNotFound).
		Context("port", name).
		Build()
}

// OpenInput listens on the input port matching name and passes every
// message to handle. Rejected messages are counted and logged on stop.
func OpenInput(drv drivers.Driver, name string, handle func(msg []byte) error) (stop func(), err error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, portError(err, "list inputs", name)
	}
	in, err := selectPort(ins, name)
	if err != nil {
		return nil, err
	}

	log := GetLogger()
	var rejected atomic.Uint64
	stopListen, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
		if err := handle(msg); err != nil {
			rejected.Add(1)
		}
	}, gomidi.UseSysEx(), gomidi.HandleError(func(err error) {
		log.Warn("midi input error", logger.String("port", in.String()), logger.Error(err))
	}))
	if err != nil {
		return nil, portError(err, "listen", in.String())
	}

	log.Info("midi input opened", logger.String("port", in.String()))
	return func() {
		stopListen()
		if err := in.Close(); err != nil {
			log.Debug("closing midi input failed", logger.Error(err))
		}
		log.Info("midi input closed",
			logger.String("port", in.String()),
			logger.Uint64("rejected", rejected.Load()))
	}, nil
}

// OpenOutput opens the output port matching name. The returned port
// satisfies Port and must be closed by the caller.
func OpenOutput(drv drivers.Driver, name string) (drivers.Out, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, portError(err, "list outputs", name)
	}
	out, err := selectPort(outs, name)
	if err != nil {
		return nil, err
	}
	if err := out.Open(); err != nil {
		return nil, portError(err, "open output", out.String())
	}
	GetLogger().Info("midi output opened", logger.String("port", out.String()))
	return out, nil
}

func portError(err error, operation, port string) error {
	return errors.New(fmt.Errorf("midi %s: %w", operation, err)).
		Component(componentMIDI).
		Category(errors.CategoryMIDI).
		Context("operation", operation).
		Context("port", port).
		Build()
}
