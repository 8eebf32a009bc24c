package transport

// Sample is a supported audio sample type.
type Sample interface {
	~float32 | ~float64
}

// Buffer is a set of equal-length channel slices handed to a Unit.
// Channels may alias device memory; a Buffer never owns its channel table.
type Buffer[T Sample] struct {
	channels   [][]T
	numSamples int
}

// NewBuffer wraps channels, each of which must hold at least numSamples samples.
func NewBuffer[T Sample](channels [][]T, numSamples int) *Buffer[T] {
	b := &Buffer[T]{}
	b.set(channels, numSamples)
	return b
}

func (b *Buffer[T]) set(channels [][]T, numSamples int) {
	b.channels = channels
	b.numSamples = numSamples
}

// NumChannels returns the channel count.
func (b *Buffer[T]) NumChannels() int { return len(b.channels) }

// NumSamples returns the per-channel length.
func (b *Buffer[T]) NumSamples() int { return b.numSamples }

// Channel returns channel i, numSamples long.
func (b *Buffer[T]) Channel(i int) []T {
	return b.channels[i][:b.numSamples]
}

// Clear zeroes every channel.
func (b *Buffer[T]) Clear() {
	for i := range b.channels {
		clear(b.channels[i][:b.numSamples])
	}
}

// convertInto copies src into dst sample by sample; both must share the same shape.
func convertInto[D, S Sample](dst *Buffer[D], src *Buffer[S]) {
	for ch := range src.channels {
		s := src.channels[ch][:src.numSamples]
		d := dst.channels[ch][:len(s)]
		for i, v := range s {
			d[i] = D(v)
		}
	}
}

// allocChannels returns n channels of size samples backed by one allocation.
func allocChannels[T Sample](n, size int) [][]T {
	backing := make([]T, n*size)
	channels := make([][]T, n)
	for i := range channels {
		channels[i] = backing[i*size : (i+1)*size : (i+1)*size]
	}
	return channels
}
