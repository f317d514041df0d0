// Package pdf extracts plain text from the leading pages of a PDF document.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// ErrInvalidPDF is returned when the input cannot be parsed as a PDF.
var ErrInvalidPDF = errors.New("invalid PDF")

// Extractor reads text out of PDF bytes.
type Extractor interface {
	ExtractLeadingPages(data []byte, maxPages int) (string, error)
}

// TextExtractor extracts embedded text with ledongthuc/pdf. It does not OCR.
type TextExtractor struct{}

// NewExtractor returns the default extractor.
func NewExtractor() TextExtractor { return TextExtractor{} }

// ExtractLeadingPages returns the text of at most maxPages pages, one page per
// line. A document with zero pages yields "" and no error. maxPages < 1 means
// every page.
func (TextExtractor) ExtractLeadingPages(data []byte, maxPages int) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty input", ErrInvalidPDF)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}

	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, content)
	}

	return strings.Join(pages, "\n"), nil
}

// Stub is an Extractor returning fixed text, for tests and dry runs.
type Stub struct {
	Text string
	Err  error
}

func (s Stub) ExtractLeadingPages([]byte, int) (string, error) {
	return s.Text, s.Err
}
