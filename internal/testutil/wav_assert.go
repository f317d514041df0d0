package testutil

import (
	"encoding/binary"
	"errors"
	"testing"
)

// WAVInfo is the format read from a WAV header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
}

// Seconds returns the playback length.
func (w WAVInfo) Seconds() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(w.Frames) / float64(w.SampleRate)
}

// AssertValidWAV checks that data is a 16-bit PCM WAV with the given sample
// rate and channel count and at least one frame, and returns its format.
func AssertValidWAV(tb testing.TB, data []byte, sampleRate, channels int) WAVInfo {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" {
		tb.Fatalf("WAV: missing RIFF header (got %q)", string(data[0:4]))
	}

	if string(data[8:12]) != "WAVE" {
		tb.Fatalf("WAV: missing WAVE marker (got %q)", string(data[8:12]))
	}

	if string(data[12:16]) != "fmt " {
		tb.Fatalf("WAV: missing fmt chunk (got %q)", string(data[12:16]))
	}

	// fmt chunk fields (little-endian).
	audioFmt := binary.LittleEndian.Uint16(data[20:22])
	if audioFmt != 1 {
		tb.Fatalf("WAV: expected PCM format (1), got %d", audioFmt)
	}

	info := WAVInfo{
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
		BitDepth:   int(binary.LittleEndian.Uint16(data[34:36])),
	}

	if info.Channels != channels {
		tb.Fatalf("WAV: expected %d channel(s), got %d", channels, info.Channels)
	}

	if info.SampleRate != sampleRate {
		tb.Fatalf("WAV: expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.BitDepth != 16 {
		tb.Fatalf("WAV: expected 16-bit depth, got %d", info.BitDepth)
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	info.Frames = int(dataSize) / (2 * info.Channels)
	if info.Frames == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}

	return info
}

// AssertWAVDurationApprox asserts that the WAV audio duration falls within
// [minSec, maxSec], using the sample rate and channel count from the header.
func AssertWAVDurationApprox(tb testing.TB, data []byte, minSec, maxSec float64) {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}
	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	if channels == 0 || sampleRate == 0 {
		tb.Fatalf("WAV duration check: invalid header (%d Hz, %d ch)", sampleRate, channels)
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	durationSec := float64(int(dataSize)/(2*channels)) / float64(sampleRate)
	if durationSec < minSec || durationSec > maxSec {
		tb.Fatalf("WAV duration %.3fs out of expected range [%.3fs, %.3fs]", durationSec, minSec, maxSec)
	}
}

// findDataChunkSize walks the WAV chunk list to locate the "data" sub-chunk
// and returns its size in bytes.
func findDataChunkSize(data []byte) (uint32, error) {
	// Start after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])

		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		if id == "data" {
			return size, nil
		}

		offset += 8 + int(size)
		// Pad to even boundary.
		if size%2 != 0 {
			offset++
		}
	}

	return 0, errors.New("data chunk not found in WAV")
}
