package services

import (
	"strings"

	"github.com/Lllllllleong/documentconverter/internal/textnorm"
)

// MergeSeparator divides block text from image transcriptions.
const MergeSeparator = "\n\n---\n\n"

// Merge appends the transcriptions, each followed by a blank line, to the
// block text after MergeSeparator, then joins soft-wrapped lines. Block text
// always comes first, wherever the images sat in the source.
func Merge(blockText string, transcriptions []Transcription) string {
	var b strings.Builder
	b.WriteString(blockText)
	b.WriteString(MergeSeparator)
	for _, t := range transcriptions {
		b.WriteString(t.Text)
		b.WriteString("\n\n")
	}
	return textnorm.FixLineBreaks(b.String())
}
