package text

import (
	"strings"
	"unicode"
)

// Clean removes PDF layout artifacts from extracted text:
//  1. Runs of two or more whitespace characters collapse to one space, except
//     runs spanning a blank line, which collapse to a single "\n\n" so paragraph
//     boundaries survive for Segment.
//  2. A single space between two ASCII uppercase letters is dropped
//     ("A B C" becomes "ABC").
//  3. Leading and trailing whitespace is trimmed.
//
// Clean is idempotent.
func Clean(s string) string {
	s = collapseWhitespace(normalizeLineEndings(s))
	s = joinUppercaseRuns(s)
	return strings.TrimSpace(s)
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}

		j, newlines := i, 0
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			if runes[j] == '\n' {
				newlines++
			}
			j++
		}

		switch {
		case j-i == 1:
			b.WriteRune(runes[i])
		case newlines >= 2:
			b.WriteString("\n\n")
		default:
			b.WriteByte(' ')
		}
		i = j
	}

	return b.String()
}

func joinUppercaseRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && i > 0 && i+1 < len(s) && isASCIIUpper(s[i-1]) && isASCIIUpper(s[i+1]) {
			continue
		}
		b.WriteByte(s[i])
	}

	return b.String()
}

func isASCIIUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

// normalizeLineEndings rewrites CRLF and bare CR to LF.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
