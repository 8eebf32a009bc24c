package units

import (
	"math"
	"sync/atomic"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/tphakala/audiorouter/internal/midi"
	"github.com/tphakala/audiorouter/internal/transport"
)

// MaxGainDB bounds the gain stage.
const MaxGainDB = 24.0

// Gain scales every channel by a linear factor. It runs on mono or stereo
// layouts with matching input and output counts, in either precision.
type Gain struct {
	base
	gainBits  atomic.Uint64
	precision transport.Precision
}

var _ transport.DoublePrecisionUnit = (*Gain)(nil)

// NewGain returns a gain stage at the given linear gain.
func NewGain(gain float64) (*Gain, error) {
	g := &Gain{base: base{name: "gain"}}
	if err := g.SetGain(gain); err != nil {
		return nil, err
	}
	return g, nil
}

// SetGain changes the linear gain; it applies from the next block.
func (g *Gain) SetGain(gain float64) error {
	if math.IsNaN(gain) || gain < 0 || gain > DBToLinear(MaxGainDB) {
		return newOptionError(g.name, "gain", gain)
	}
	g.gainBits.Store(math.Float64bits(gain))
	return nil
}

// Gain returns the linear gain.
func (g *Gain) Gain() float64 {
	return math.Float64frombits(g.gainBits.Load())
}

func (g *Gain) IsMIDIEffect() bool { return false }

func (g *Gain) DefaultLayout() transport.ChannelCount {
	return transport.ChannelCount{Ins: 2, Outs: 2}
}

func (g *Gain) AcceptsLayout(c transport.ChannelCount) bool {
	return c.Ins == c.Outs && (c.Ins == 1 || c.Ins == 2)
}

func (g *Gain) SupportsDoublePrecision() bool { return true }

func (g *Gain) SetPrecision(p transport.Precision) { g.precision = p }

func (g *Gain) ProcessBlock(buf *transport.Buffer[float32], _ *midi.Buffer) {
	gain := float32(g.Gain())
	for c := range buf.NumChannels() {
		ch := buf.Channel(c)
		for i := range ch {
			ch[i] *= gain
		}
	}
}

func (g *Gain) ProcessBlockDouble(buf *transport.Buffer[float64], _ *midi.Buffer) {
	gain := g.Gain()
	for c := range buf.NumChannels() {
		vecmath.ScaleBlockInPlace(buf.Channel(c), gain)
	}
}

// DBToLinear converts decibels to a linear amplitude factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear amplitude factor to decibels. Zero maps to -Inf.
func LinearToDB(gain float64) float64 {
	return 20 * math.Log10(gain)
}
