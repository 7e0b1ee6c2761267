package pdfextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPages_Empty(t *testing.T) {
	_, err := ExtractPages(nil)
	assert.ErrorIs(t, err, ErrEmptyPDF)
}

func TestExtractText_NotAPDF(t *testing.T) {
	text, err := ExtractText([]byte("plain text pretending to be a pdf"))
	require.Error(t, err)
	assert.Empty(t, text)
}
