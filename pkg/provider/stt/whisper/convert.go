package whisper

import "encoding/binary"

// monoSamples converts 16-bit signed little-endian PCM into the mono float32
// stream whisper.cpp expects, down-mixing by averaging channels per frame.
// Samples are normalised to [-1.0, 1.0]. channels below 1 is treated as mono;
// trailing bytes that do not fill a whole frame are dropped.
func monoSamples(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes

	out := make([]float32, frames)
	scale := float32(1) / (32768.0 * float32(channels))
	for f := range frames {
		var sum int32
		base := f * frameBytes
		for ch := range channels {
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[base+2*ch:])))
		}
		out[f] = float32(sum) * scale
	}
	return out
}
