package audio

import (
	"errors"
	"fmt"
	"time"
)

// DefaultBitDepth is the PCM bit depth used for every WAV this package writes.
const DefaultBitDepth = 16

var (
	// ErrSampleRateMismatch is returned when buffers that must share one
	// format disagree on sample rate or channel count.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
	// ErrNoBuffers is returned when there is nothing to stitch.
	ErrNoBuffers = errors.New("no audio buffers")
)

// Buffer is decoded PCM audio. Samples are interleaved float32 in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (b Buffer) Frames() int {
	ch := b.Channels
	if ch < 1 {
		ch = 1
	}
	return len(b.Samples) / ch
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate < 1 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Validate reports whether the buffer has a usable format.
func (b Buffer) Validate() error {
	if b.SampleRate < 1 {
		return fmt.Errorf("invalid sample rate: %d", b.SampleRate)
	}
	if b.Channels < 1 {
		return fmt.Errorf("invalid channel count: %d", b.Channels)
	}
	return nil
}

// SameFormat reports whether other can be concatenated after b.
func (b Buffer) SameFormat(other Buffer) bool {
	return b.SampleRate == other.SampleRate && b.Channels == other.Channels
}
