package audio

import "fmt"

// Stitch concatenates buffers in order along the time axis. The result carries
// sampleRate, the reference rate of the job; every buffer must match it and
// the channel count of the first buffer. Nothing is resampled or mixed.
func Stitch(buffers []Buffer, sampleRate int) (Buffer, error) {
	if len(buffers) == 0 {
		return Buffer{}, ErrNoBuffers
	}
	if sampleRate < 1 {
		return Buffer{}, fmt.Errorf("invalid reference sample rate: %d", sampleRate)
	}

	ref := Buffer{SampleRate: sampleRate, Channels: buffers[0].Channels}
	total := 0
	for i, b := range buffers {
		if !ref.SameFormat(b) {
			return Buffer{}, fmt.Errorf("%w: buffer %d is %d Hz/%d ch, want %d Hz/%d ch",
				ErrSampleRateMismatch, i, b.SampleRate, b.Channels, ref.SampleRate, ref.Channels)
		}
		total += len(b.Samples)
	}

	merged := make([]float32, 0, total)
	for _, b := range buffers {
		merged = append(merged, b.Samples...)
	}

	return Buffer{Samples: merged, SampleRate: ref.SampleRate, Channels: ref.Channels}, nil
}
