package device

import (
	"encoding/binary"
	"math"
)

const bytesPerF32 = 4

// deinterleave copies frames of interleaved little-endian float32 samples,
// starting at frame offset, into dst. Missing source data reads as zero.
func deinterleave(src []byte, dst [][]float32, offset, frames int) {
	channels := len(dst)
	if channels == 0 {
		return
	}
	for f := range frames {
		base := (offset + f) * channels * bytesPerF32
		for c, ch := range dst {
			i := base + c*bytesPerF32
			if i+bytesPerF32 > len(src) {
				ch[f] = 0
				continue
			}
			ch[f] = math.Float32frombits(binary.LittleEndian.Uint32(src[i:]))
		}
	}
}

// interleave writes frames from src into dst as interleaved little-endian
// float32, starting at frame offset.
func interleave(src [][]float32, dst []byte, offset, frames int) {
	channels := len(src)
	if channels == 0 {
		return
	}
	for f := range frames {
		base := (offset + f) * channels * bytesPerF32
		for c, ch := range src {
			i := base + c*bytesPerF32
			if i+bytesPerF32 > len(dst) {
				return
			}
			binary.LittleEndian.PutUint32(dst[i:], math.Float32bits(ch[f]))
		}
	}
}

// intScale returns the full-scale value for a PCM bit depth.
func intScale(bitDepth int) float32 {
	return float32(int64(1) << (bitDepth - 1))
}

// intsToFloat deinterleaves integer PCM into dst, scaled to [-1, 1).
func intsToFloat(src []int, dst [][]float32, frames int, scale float32) {
	channels := len(dst)
	for f := range frames {
		for c, ch := range dst {
			ch[f] = float32(src[f*channels+c]) / scale
		}
	}
}

// floatToInts interleaves dst into integer PCM, clipping to full scale.
func floatToInts(src [][]float32, dst []int, frames int, scale float32) {
	channels := len(src)
	hi := int(scale) - 1
	lo := -int(scale)
	for f := range frames {
		for c, ch := range src {
			v := int(math.Round(float64(ch[f] * scale)))
			dst[f*channels+c] = min(max(v, lo), hi)
		}
	}
}
