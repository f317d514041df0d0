package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// unknownLength fills the RIFF and data size fields of a stream whose length
// is not known when the header is sent.
const unknownLength = 0xFFFFFFFF

// streamHeaderSize is the size of the canonical PCM WAV header.
const streamHeaderSize = 44

func streamHeader(sampleRate, channels int) ([]byte, error) {
	if sampleRate < 1 || channels < 1 {
		return nil, fmt.Errorf("invalid stream format: %d Hz, %d channels", sampleRate, channels)
	}
	blockAlign := channels * DefaultBitDepth / 8

	hdr := make([]byte, 0, streamHeaderSize)
	hdr = append(hdr, "RIFF"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, unknownLength)
	hdr = append(hdr, "WAVEfmt "...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 16)
	hdr = binary.LittleEndian.AppendUint16(hdr, 1) // PCM
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(channels))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(sampleRate))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(sampleRate*blockAlign))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(blockAlign))
	hdr = binary.LittleEndian.AppendUint16(hdr, DefaultBitDepth)
	hdr = append(hdr, "data"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, unknownLength)
	return hdr, nil
}

// appendPCM16 appends samples as little-endian signed 16-bit PCM, clamping
// to [-1, 1]. NaN encodes as silence.
func appendPCM16(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		switch {
		case math.IsNaN(float64(s)):
			s = 0
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(s*32767)))
	}
	return dst
}

// StreamWriter writes consecutive buffers as one unknown-length WAV stream.
// The header is emitted with the format of the first buffer; later buffers
// must match it. Writers with a Flush method are flushed after every buffer.
type StreamWriter struct {
	w       io.Writer
	format  Buffer
	started bool
	frames  int
	scratch []byte
}

func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// Write appends buf to the stream, writing the header first if needed.
func (s *StreamWriter) Write(buf Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	out := s.scratch[:0]
	if !s.started {
		hdr, err := streamHeader(buf.SampleRate, buf.Channels)
		if err != nil {
			return err
		}
		out = append(out, hdr...)
	} else if !s.format.SameFormat(buf) {
		return fmt.Errorf("%w: stream is %d Hz/%d ch, buffer is %d Hz/%d ch",
			ErrSampleRateMismatch, s.format.SampleRate, s.format.Channels, buf.SampleRate, buf.Channels)
	}
	out = appendPCM16(out, buf.Samples)
	s.scratch = out

	if _, err := s.w.Write(out); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	if !s.started {
		s.format = Buffer{SampleRate: buf.SampleRate, Channels: buf.Channels}
		s.started = true
	}
	s.frames += buf.Frames()

	if f, ok := s.w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}

// Frames returns the number of sample frames written so far.
func (s *StreamWriter) Frames() int { return s.frames }
