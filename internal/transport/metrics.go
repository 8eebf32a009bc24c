package transport

import "time"

// BlockOutcome classifies what the router did with one audio block.
type BlockOutcome int

const (
	BlockProcessed BlockOutcome = iota
	BlockSilentNoUnit
	BlockSilentSuspended
	BlockSilentMisconfigured
	BlockSilentUnprepared
)

var blockOutcomeNames = [...]string{
	BlockProcessed:           "processed",
	BlockSilentNoUnit:        "silent_no_unit",
	BlockSilentSuspended:     "silent_suspended",
	BlockSilentMisconfigured: "silent_misconfigured",
	BlockSilentUnprepared:    "silent_unprepared",
}

func (o BlockOutcome) String() string {
	if o >= 0 && int(o) < len(blockOutcomeNames) {
		return blockOutcomeNames[o]
	}
	return "unknown"
}

// BlockOutcomes lists every outcome, for pre-registering metric series.
func BlockOutcomes() []BlockOutcome {
	return []BlockOutcome{
		BlockProcessed,
		BlockSilentNoUnit,
		BlockSilentSuspended,
		BlockSilentMisconfigured,
		BlockSilentUnprepared,
	}
}

// Metrics receives router instrumentation. RecordBlock is called from the
// audio callback and must not allocate or block.
type Metrics interface {
	RecordBlock(outcome BlockOutcome, numSamples int, elapsed time.Duration)
	RecordMIDIEvents(in int)
	RecordAttach(unit string, accepted bool)
	RecordNegotiation(layout ChannelCount, fallback bool)
	RecordDeviceEvent(event string)
	SetTempo(bpm float64)
	SetPrecision(p Precision)
}

type noopMetrics struct{}

func (noopMetrics) RecordBlock(BlockOutcome, int, time.Duration) {}
func (noopMetrics) RecordMIDIEvents(int)                         {}
func (noopMetrics) RecordAttach(string, bool)                    {}
func (noopMetrics) RecordNegotiation(ChannelCount, bool)         {}
func (noopMetrics) RecordDeviceEvent(string)                     {}
func (noopMetrics) SetTempo(float64)                             {}
func (noopMetrics) SetPrecision(Precision)                       {}
