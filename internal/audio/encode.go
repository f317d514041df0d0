package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// EncodeWAV encodes buf as a 16-bit PCM WAV byte slice at the buffer's own
// sample rate and channel count.
func EncodeWAV(buf Buffer) ([]byte, error) {
	var out bytes.Buffer

	// wav.NewEncoder requires an io.WriteSeeker; bytes.Buffer is not one.
	sw := &seekBuffer{buf: &out}
	if err := encode(sw, buf); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// WriteWAVFile encodes buf into a new file at path. A partially written file
// is removed on failure.
func WriteWAVFile(path string, buf Buffer) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create WAV: %w", err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close WAV: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	return encode(f, buf)
}

func encode(w io.WriteSeeker, buf Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if len(buf.Samples)%buf.Channels != 0 {
		return errors.New("sample count is not a multiple of the channel count")
	}

	enc := wav.NewEncoder(w, buf.SampleRate, DefaultBitDepth, buf.Channels, 1) // 1 = PCM

	pcmBuf := &goaudio.Float32Buffer{
		Data:           buf.Samples,
		Format:         &goaudio.Format{SampleRate: buf.SampleRate, NumChannels: buf.Channels},
		SourceBitDepth: DefaultBitDepth,
	}

	if err := enc.Write(pcmBuf); err != nil {
		return fmt.Errorf("writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}

	return nil
}

// seekBuffer wraps a bytes.Buffer to satisfy io.WriteSeeker.
type seekBuffer struct {
	buf *bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	// If writing at the end, just append.
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n
		return n, err
	}
	// Writing in the middle: overwrite existing bytes.
	data := s.buf.Bytes()
	n := copy(data[s.pos:], p)
	if n < len(p) {
		data = append(data, p[n:]...)
		s.buf.Reset()
		s.buf.Write(data)
		n = len(p)
	}
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case io.SeekStart:
		newPos = int(offset)
	case io.SeekCurrent:
		newPos = s.pos + int(offset)
	case io.SeekEnd:
		newPos = s.buf.Len() + int(offset)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("seek before start")
	}
	s.pos = newPos
	return int64(newPos), nil
}
