package audio

import (
	"encoding/binary"
	"math"
)

// WAV format tags from the fmt sub-chunk.
const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// wavHeaderSize is the size of the minimal header emitted by writeWAV:
// RIFF descriptor (12) + fmt chunk (24) + data chunk header (8).
const wavHeaderSize = 44

// wavInfo holds the format metadata extracted from a RIFF/WAVE container.
type wavInfo struct {
	format     int // wavFormatPCM or wavFormatIEEEFloat
	channels   int
	sampleRate int
	bitDepth   int
	dataOffset int // byte offset of the first sample
	dataLen    int // byte length of the data chunk
}

// parseWAV walks the RIFF chunks in wav and returns the format metadata
// from the "fmt " sub-chunk together with the data chunk location. Walking
// the chunks is more robust than assuming a fixed 44-byte header because
// encoders may insert LIST/fact chunks or a larger fmt chunk.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, &DecodeError{Detail: "not a RIFF/WAVE container"}
	}

	var info wavInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(wav) {
				return wavInfo{}, &DecodeError{Detail: "truncated fmt chunk"}
			}
			fmtData := wav[offset+8:]
			info.format = int(binary.LittleEndian.Uint16(fmtData[0:2]))
			info.channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			info.bitDepth = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return wavInfo{}, &DecodeError{Detail: "data chunk precedes fmt chunk"}
			}
			info.dataOffset = offset + 8
			info.dataLen = chunkSize
			if info.dataOffset+info.dataLen > len(wav) {
				info.dataLen = len(wav) - info.dataOffset
			}
			return info, nil
		}

		// Chunks are word-aligned: pad by one byte if the size is odd.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, &DecodeError{Detail: "missing data chunk"}
}

// decodeWAV decodes the first channel of a RIFF/WAVE container into
// normalized floating-point samples at the native sample rate.
func decodeWAV(wav []byte) (decodedAudio, error) {
	info, err := parseWAV(wav)
	if err != nil {
		return decodedAudio{}, err
	}
	if info.channels <= 0 || info.sampleRate <= 0 {
		return decodedAudio{}, &DecodeError{Detail: "invalid channel count or sample rate"}
	}

	data := wav[info.dataOffset : info.dataOffset+info.dataLen]

	switch {
	case info.format == wavFormatPCM && info.bitDepth == 16:
		return decodedAudio{
			samples:    firstChannelInt16(data, info.channels),
			sampleRate: info.sampleRate,
		}, nil
	case info.format == wavFormatIEEEFloat && info.bitDepth == 32:
		return decodedAudio{
			samples:    firstChannelFloat32(data, info.channels),
			sampleRate: info.sampleRate,
		}, nil
	default:
		return decodedAudio{}, &DecodeError{
			Detail: "unsupported WAV encoding (want 16-bit PCM or 32-bit float)",
		}
	}
}

// firstChannelInt16 extracts channel 0 from interleaved little-endian int16
// frames and maps each sample to [-1, 1].
func firstChannelInt16(data []byte, channels int) []float32 {
	frameBytes := channels * 2
	n := len(data) / frameBytes
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*frameBytes:]))
		out[i] = int16ToFloat(v)
	}
	return out
}

// firstChannelFloat32 extracts channel 0 from interleaved little-endian
// 32-bit float frames.
func firstChannelFloat32(data []byte, channels int) []float32 {
	frameBytes := channels * 4
	n := len(data) / frameBytes
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*frameBytes:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// writeWAV serializes quantized mono samples into a minimal 44-byte-header
// RIFF/WAVE container at the target rate, little-endian throughout.
func writeWAV(samples []int16) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, wavHeaderSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], TargetChannels)
	binary.LittleEndian.PutUint32(buf[24:28], TargetSampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], TargetSampleRate*TargetChannels*2) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], TargetChannels*2)                  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                                // bit depth

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*2:], uint16(s))
	}
	return buf
}
