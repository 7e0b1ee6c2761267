// Package textsplit cuts text into overlapping, fixed-size character windows.
package textsplit

import (
	"errors"
	"fmt"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

var ErrInvalidWindow = errors.New("chunk size must exceed overlap and overlap must not be negative")

// Split returns windows of size characters (code points). Each window starts
// size-overlap characters after the previous one; the last window is cut at
// the end of text. Empty text yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if overlap < 0 || size <= overlap {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidWindow, size, overlap)
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// Join reverses Split for the same overlap.
func Join(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	out := []rune(chunks[0])
	for _, chunk := range chunks[1:] {
		out = append(out, []rune(chunk)[overlap:]...)
	}
	return string(out)
}
