// Package textnorm cleans text pulled out of documents before it is merged
// and sent to the generative model.
package textnorm

import (
	"regexp"
	"strings"
)

// controlCharsRegex matches C0 control characters and DEL, except the line feed.
var controlCharsRegex = regexp.MustCompile(`[\x00-\x09\x0B-\x1F\x7F]`)

// Clean strips control characters. Line feeds survive so block and page
// boundaries are still visible to FixLineBreaks.
func Clean(text string) string {
	return controlCharsRegex.ReplaceAllString(text, "")
}

// FixLineBreaks replaces every line feed that has no line feed on either side
// with a single space. Runs of two or more line feeds are kept as they are.
func FixLineBreaks(text string) string {
	if !strings.Contains(text, "\n") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\n' {
			b.WriteByte(c)
			continue
		}
		prevBreak := i > 0 && text[i-1] == '\n'
		nextBreak := i+1 < len(text) && text[i+1] == '\n'
		if prevBreak || nextBreak {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
