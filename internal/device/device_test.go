package device

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiorouter/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

func TestInterleaveRoundTrip(t *testing.T) {
	t.Parallel()

	src := [][]float32{{0.1, 0.2, 0.3}, {-0.1, -0.2, -0.3}}
	raw := make([]byte, 3*2*bytesPerF32)
	interleave(src, raw, 0, 3)

	dst := allocChannels(2, 3)
	deinterleave(raw, dst, 0, 3)
	assert.Equal(t, src, dst)

	// Frame offsets address the interleaved stream
	tail := allocChannels(2, 1)
	deinterleave(raw, tail, 2, 1)
	assert.Equal(t, [][]float32{{0.3}, {-0.3}}, tail)

	// Short input reads as silence
	short := allocChannels(2, 3)
	deinterleave(raw[:8], short, 0, 3)
	assert.Equal(t, [][]float32{{0.1, 0, 0}, {-0.1, 0, 0}}, short)
}

func TestIntConversionClips(t *testing.T) {
	t.Parallel()

	scale := intScale(16)
	assert.InDelta(t, 32768.0, float64(scale), 0)

	ints := make([]int, 4)
	floatToInts([][]float32{{1.5, -2}, {0.5, 0}}, ints, 2, scale)
	assert.Equal(t, []int{32767, 16384, -32768, 0}, ints)

	floats := allocChannels(2, 2)
	intsToFloat(ints, floats, 2, scale)
	assert.InDelta(t, 0.5, float64(floats[1][0]), 1e-6)
	assert.InDelta(t, -1.0, float64(floats[0][1]), 1e-6)
}

func TestSelectDevice(t *testing.T) {
	t.Parallel()

	infos := []Info{
		{Index: 0, Name: "HDA Intel PCH, ALC295 Analog", ID: ":0,0"},
		{Index: 2, Name: "USB Audio CODEC", ID: ":1,0", Default: true},
		{Index: 3, Name: "Loopback", ID: ":2,0"},
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"default device", "", 2},
		{"default alias", "default", 2},
		{"exact name", "Loopback", 3},
		{"decoded id", ":0,0", 0},
		{"substring", "CODEC", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SelectDevice(infos, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Index)
		})
	}

	_, err := SelectDevice(infos, "Focusrite")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.True(t, errors.IsNotFound(err))

	first, err := SelectDevice([]Info{{Index: 5, Name: "only"}}, "")
	require.NoError(t, err)
	assert.Equal(t, 5, first.Index, "first device when none is marked default")
}

func TestResolveBackend(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"alsa", "PulseAudio", "jack", "wasapi", "coreaudio", "null"} {
		_, err := ResolveBackend(name)
		assert.NoError(t, err, name)
	}
	_, err := ResolveBackend("oss4")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestListerCachesEnumeration(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := map[Kind]int{}
	enumerate := func(backend string, kind Kind) ([]Info, error) {
		mu.Lock()
		defer mu.Unlock()
		calls[kind]++
		assert.Equal(t, "null", backend)
		return []Info{{Name: kind.String()}}, nil
	}

	l := NewLister("null", time.Minute, WithEnumerator(enumerate))

	for range 3 {
		infos, err := l.Devices(Capture)
		require.NoError(t, err)
		assert.Equal(t, "capture", infos[0].Name)
	}
	_, err := l.Devices(Playback)
	require.NoError(t, err)
	assert.Equal(t, map[Kind]int{Capture: 1, Playback: 1}, calls)

	// Callers get copies
	infos, _ := l.Devices(Capture)
	infos[0].Name = "changed"
	again, _ := l.Devices(Capture)
	assert.Equal(t, "capture", again[0].Name)

	l.Invalidate()
	_, err = l.Devices(Capture)
	require.NoError(t, err)
	assert.Equal(t, 2, calls[Capture])
}

func TestListerDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	l := NewLister("null", time.Minute, WithEnumerator(func(string, Kind) ([]Info, error) {
		calls++
		return nil, errors.NewStd("backend busy")
	}))

	_, err := l.Devices(Capture)
	require.Error(t, err)
	_, err = l.Devices(Capture)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestNewMalgoValidates(t *testing.T) {
	t.Parallel()

	_, err := NewMalgo(MalgoConfig{Backend: "null"})
	require.Error(t, err, "no channels")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = NewMalgo(MalgoConfig{Backend: "bogus", Outputs: 2})
	require.Error(t, err)

	m, err := NewMalgo(MalgoConfig{Backend: "null", Inputs: 1, Outputs: 2})
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleRate, m.cfg.SampleRate)
	assert.Equal(t, DefaultBlockSize, m.cfg.BlockSize)
	assert.ErrorIs(t, m.Stop(), ErrNotRunning)
}

// scaler is a Callback that copies input to output scaled by gain and
// records the stream lifecycle.
type scaler struct {
	gain    float32
	cfg     Config
	blocks  int
	maxN    int
	stopped bool
	hostNs  []uint64
}

func (s *scaler) AboutToStart(cfg Config) { s.cfg = cfg }
func (s *scaler) Stopped()                { s.stopped = true }

func (s *scaler) Process(inputs, outputs [][]float32, n int, bc BlockContext) {
	s.blocks++
	s.maxN = max(s.maxN, n)
	s.hostNs = append(s.hostNs, bc.HostTimeNs)
	for c, out := range outputs {
		for i := range n {
			if len(inputs) > 0 {
				out[i] = inputs[c%len(inputs)][i] * s.gain
			} else {
				out[i] = s.gain
			}
		}
	}
}

func writeTestWAV(t *testing.T, path string, rate, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, wavFormatPCM)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:   data,
		Format: &audio.Format{SampleRate: rate, NumChannels: channels},
	}))
	require.NoError(t, enc.Close())
}

func readTestWAV(t *testing.T, path string) (*wav.Decoder, []int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	return dec, buf.Data
}

func TestOfflineRendersFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.wav")
	outPath := filepath.Join(dir, "out.wav")

	const frames = 1000
	data := make([]int, frames*2)
	for i := range frames {
		data[2*i] = 16384
		data[2*i+1] = -8192
	}
	writeTestWAV(t, inPath, 44100, 2, data)

	in, err := os.Open(inPath)
	require.NoError(t, err)
	defer in.Close()
	out, err := os.Create(outPath)
	require.NoError(t, err)
	defer out.Close()

	dev, err := NewOffline(in, out, OfflineConfig{BlockSize: 256})
	require.NoError(t, err)

	cb := &scaler{gain: 0.5}
	require.NoError(t, dev.Start(context.Background(), cb))
	require.NoError(t, out.Sync())

	assert.True(t, cb.stopped)
	assert.Equal(t, Config{SampleRate: 44100, BlockSize: 256, Inputs: 2, Outputs: 2, Name: "offline"}, cb.cfg)
	assert.Equal(t, 4, cb.blocks, "1000 frames in blocks of 256")
	assert.Equal(t, 256, cb.maxN)
	assert.Equal(t, uint64(frames), dev.Frames())
	assert.Equal(t, uint64(0), cb.hostNs[0])
	assert.Equal(t, uint64(256*time.Second/44100), cb.hostNs[1])

	dec, rendered := readTestWAV(t, outPath)
	assert.Equal(t, uint32(44100), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	require.Len(t, rendered, frames*2)
	assert.Equal(t, 8192, rendered[0])
	assert.Equal(t, -4096, rendered[1])
	assert.Equal(t, 8192, rendered[len(rendered)-2])
}

func TestOfflineRendersWithoutInput(t *testing.T) {
	t.Parallel()

	outPath := filepath.Join(t.TempDir(), "synth.wav")
	out, err := os.Create(outPath)
	require.NoError(t, err)
	defer out.Close()

	_, err = NewOffline(nil, out, OfflineConfig{})
	require.Error(t, err, "needs a duration")

	dev, err := NewOffline(nil, out, OfflineConfig{
		BlockSize:  100,
		SampleRate: 8000,
		Outputs:    1,
		Duration:   50 * time.Millisecond,
	})
	require.NoError(t, err)

	cb := &scaler{gain: 0.25}
	require.NoError(t, dev.Start(context.Background(), cb))
	assert.Equal(t, 0, cb.cfg.Inputs)
	assert.Equal(t, 4, cb.blocks)

	_, rendered := readTestWAV(t, outPath)
	require.Len(t, rendered, 400)
	assert.Equal(t, 8192, rendered[399])
}

func TestOfflineCancellation(t *testing.T) {
	t.Parallel()

	out, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	require.NoError(t, err)
	defer out.Close()

	dev, err := NewOffline(nil, out, OfflineConfig{Duration: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = dev.Start(ctx, &scaler{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.ErrorIs(t, dev.Stop(), ErrNotRunning)
}

func TestOfflineRejectsBadInput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a wav file"), 0o600))
	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	out, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	require.NoError(t, err)
	defer out.Close()

	dev, err := NewOffline(in, out, OfflineConfig{})
	require.NoError(t, err)
	err = dev.Start(context.Background(), &scaler{})
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Zero(t, dev.Frames())
}
