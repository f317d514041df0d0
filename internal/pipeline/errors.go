package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction means the PDF could not be read.
	ErrExtraction = errors.New("text extraction failed")
	// ErrNoTextFound means extraction worked but nothing speakable remained
	// after cleaning.
	ErrNoTextFound = errors.New("no text found in the leading pages of the PDF")
	// ErrNoAudioGenerated means every chunk failed synthesis.
	ErrNoAudioGenerated = errors.New("no audio piece could be generated")
	// ErrStitch covers concatenating buffers and writing the final artifact.
	ErrStitch = errors.New("stitching audio failed")
)

// SynthesisError is the failure of a single chunk. It is recorded in the
// Report and never aborts a job on its own.
type SynthesisError struct {
	Index int
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
