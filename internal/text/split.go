package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitLong re-splits chunks longer than maxChars runes at sentence
// boundaries (., !, ?), grouping consecutive sentences while staying within
// the limit, and renumbers the result. A single sentence longer than maxChars
// is cut at the last whitespace within the limit, or mid-word when there is
// none. maxChars <= 0 returns chunks unchanged.
func SplitLong(chunks []Chunk, maxChars int) []Chunk {
	if maxChars <= 0 {
		return chunks
	}

	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		pieces := []string{c.Text}
		if utf8.RuneCountInString(c.Text) > maxChars {
			pieces = groupSentences(splitSentences(c.Text), maxChars)
		}
		for _, p := range pieces {
			out = append(out, Chunk{Index: len(out), Text: p})
		}
	}
	return out
}

func groupSentences(sentences []string, maxChars int) []string {
	var groups []string
	var current strings.Builder
	currentLen := 0

	var fitted []string
	for _, s := range sentences {
		if utf8.RuneCountInString(s) > maxChars {
			fitted = append(fitted, hardSplit(s, maxChars)...)
			continue
		}
		fitted = append(fitted, s)
	}

	for _, s := range fitted {
		n := utf8.RuneCountInString(s)
		if currentLen == 0 {
			current.WriteString(s)
			currentLen = n
			continue
		}
		if currentLen+1+n > maxChars {
			groups = append(groups, current.String())
			current.Reset()
			current.WriteString(s)
			currentLen = n
			continue
		}
		current.WriteByte(' ')
		current.WriteString(s)
		currentLen += 1 + n
	}
	if currentLen > 0 {
		groups = append(groups, current.String())
	}

	return groups
}

// hardSplit cuts s into pieces of at most maxChars runes, breaking at the
// last whitespace inside each window when there is one.
func hardSplit(s string, maxChars int) []string {
	var pieces []string
	r := []rune(strings.TrimSpace(s))
	for len(r) > maxChars {
		cut := maxChars
		for i := maxChars; i > 0; i-- {
			if unicode.IsSpace(r[i]) {
				cut = i
				break
			}
		}
		pieces = append(pieces, strings.TrimSpace(string(r[:cut])))
		r = []rune(strings.TrimSpace(string(r[cut:])))
	}
	if len(r) > 0 {
		pieces = append(pieces, string(r))
	}
	return pieces
}

// splitSentences splits text on sentence-ending punctuation, keeping the
// terminator attached to its sentence. Empty segments are dropped.
func splitSentences(text string) []string {
	var sentences []string
	start := 0

	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}

	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}
