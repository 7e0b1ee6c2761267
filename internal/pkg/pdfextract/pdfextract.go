package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrEmptyPDF = errors.New("pdf is empty")

// ExtractPages returns the plain text of each page in page order. Pages with no
// extractable text yield an empty string so indexes stay aligned with page numbers.
func ExtractPages(data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyPDF
	}
	// the pdf package panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parse pdf failed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d failed: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// ExtractText concatenates the page texts, one newline between pages.
func ExtractText(data []byte) (string, error) {
	pages, err := ExtractPages(data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}
