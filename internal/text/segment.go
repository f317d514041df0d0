package text

import "strings"

// ParagraphSeparator is the blank-line boundary Segment splits on.
const ParagraphSeparator = "\n\n"

// Chunk is one speakable piece of text in document order.
type Chunk struct {
	Index int
	Text  string
}

// Segment splits text into paragraph chunks on blank lines, dropping pieces
// that are empty or whitespace-only. When no non-empty piece remains but the
// input itself is not blank, the whole trimmed input becomes the single chunk.
// Chunk text is trimmed; no size limit is applied.
func Segment(s string) []Chunk {
	var chunks []Chunk
	for _, piece := range strings.Split(s, ParagraphSeparator) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: piece})
	}

	if len(chunks) == 0 {
		if whole := strings.TrimSpace(s); whole != "" {
			chunks = []Chunk{{Index: 0, Text: whole}}
		}
	}

	return chunks
}
