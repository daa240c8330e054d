package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
)

// EncodeWAV wraps raw 16-bit little-endian PCM in a minimal RIFF/WAVE
// container with a standard 44-byte header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size - 8
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], pcm)

	return buf
}

// DecodeWAV extracts the PCM payload and its format from a RIFF/WAVE
// container. It walks the chunk list rather than assuming a fixed 44-byte
// header because the fmt chunk size may vary and extra chunks (LIST, fact)
// can precede the data. Only uncompressed 16-bit PCM is supported.
func DecodeWAV(wav []byte) ([]byte, Format, error) {
	if len(wav) < 12 {
		return nil, Format{}, errors.New("audio: WAV too short to be a valid RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return nil, Format{}, errors.New("audio: WAV missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return nil, Format{}, errors.New("audio: WAV missing WAVE identifier")
	}

	var format Format
	foundFmt := false

	// Walk RIFF chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(wav) {
				return nil, Format{}, errors.New("audio: WAV fmt chunk truncated")
			}
			fmtData := wav[offset+8:]
			if enc := binary.LittleEndian.Uint16(fmtData[0:2]); enc != 1 {
				return nil, Format{}, fmt.Errorf("audio: unsupported WAV encoding %d (want PCM)", enc)
			}
			format.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			if bits := binary.LittleEndian.Uint16(fmtData[14:16]); bits != bitsPerSample {
				return nil, Format{}, fmt.Errorf("audio: unsupported WAV bit depth %d (want %d)", bits, bitsPerSample)
			}
			if format.Channels < 1 || format.SampleRate <= 0 {
				return nil, Format{}, fmt.Errorf("audio: invalid WAV format %s",
					formatString(format.SampleRate, format.Channels))
			}
			foundFmt = true
		case "data":
			if !foundFmt {
				return nil, Format{}, errors.New("audio: WAV data chunk precedes fmt chunk")
			}
			start := offset + 8
			// Clamp to the bytes actually present; some writers overstate the
			// data size when streaming.
			end := start + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[start:end], format, nil
		}

		// Advance past this chunk (chunks are word-aligned: pad by 1 if odd size).
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return nil, Format{}, errors.New("audio: WAV missing data chunk")
}
