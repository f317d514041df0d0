package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/wav"
)

// ErrFormatMismatch is returned when a decoded WAV is not PCM audio we can read.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// DecodeWAV decodes WAV bytes into a Buffer carrying the file's own sample
// rate and channel count.
func DecodeWAV(data []byte) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, errors.New("empty WAV input")
	}
	return decode(bytes.NewReader(data))
}

// DecodeWAVFile decodes the WAV file at path.
func DecodeWAVFile(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("open WAV: %w", err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return Buffer{}, fmt.Errorf("stat WAV: %w", err)
	}
	if st.Size() == 0 {
		return Buffer{}, errors.New("empty WAV input")
	}

	return decode(f)
}

func decode(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, errors.New("invalid WAV file")
	}

	if dec.SampleRate < 1 {
		return Buffer{}, fmt.Errorf("%w: sample rate %d", ErrFormatMismatch, dec.SampleRate)
	}
	if dec.NumChans < 1 {
		return Buffer{}, fmt.Errorf("%w: channels %d", ErrFormatMismatch, dec.NumChans)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return Buffer{}, fmt.Errorf("%w: bit depth %d", ErrFormatMismatch, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("reading PCM data: %w", err)
	}

	return Buffer{
		Samples:    buf.Data,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}
