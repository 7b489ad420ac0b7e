package docx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/wml/stypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

func paragraphCount(t *testing.T, path string) int {
	t.Helper()
	doc, err := godocx.OpenDocument(path)
	require.NoError(t, err)
	n := 0
	for _, child := range doc.Document.Body.Children {
		if child.Para != nil {
			n++
		}
	}
	return n
}

func TestWriteSingleParagraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "converted_document.docx")
	text := "Title\n\nBody & <more>\tend"
	require.NoError(t, Write(path, text, Options{}))

	assert.Equal(t, 1, paragraphCount(t, path))
	got, err := ReadText(path)
	require.NoError(t, err)
	assert.Equal(t, text, got)

	doc, err := godocx.OpenDocument(path)
	require.NoError(t, err)
	para := doc.Document.Body.Children[0].Para.GetCT()
	if para.Property != nil {
		assert.Nil(t, para.Property.Style)
	}
}

func TestWriteKeepsSurroundingSpaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "document.docx")
	require.NoError(t, Write(path, "  indented\nline  ", Options{}))

	got, err := ReadText(path)
	require.NoError(t, err)
	assert.Equal(t, "  indented\nline  ", got)
}

func TestWriteAppliesFontToNormalStyle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "document.docx")
	require.NoError(t, Write(path, "scan text", Options{Style: "Normal", Font: "Times New Roman"}))

	doc, err := godocx.OpenDocument(path)
	require.NoError(t, err)
	normal := doc.GetStyleByID("Normal", stypes.StyleTypeParagraph)
	require.NotNil(t, normal)
	require.NotNil(t, normal.RunProp)
	require.NotNil(t, normal.RunProp.Fonts)
	assert.Equal(t, "Times New Roman", normal.RunProp.Fonts.Ascii)
	assert.Equal(t, "Times New Roman", normal.RunProp.Fonts.HAnsi)
}

func TestWriteCustomStyle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "document.docx")
	require.NoError(t, Write(path, "x", Options{Style: "Scan Body", Font: "Arial"}))

	doc, err := godocx.OpenDocument(path)
	require.NoError(t, err)
	para := doc.Document.Body.Children[0].Para.GetCT()
	require.NotNil(t, para.Property)
	require.NotNil(t, para.Property.Style)
	assert.Equal(t, "ScanBody", para.Property.Style.Val)

	style := doc.GetStyleByID("ScanBody", stypes.StyleTypeParagraph)
	require.NotNil(t, style)
	assert.Equal(t, "Scan Body", style.Name.Val)
	assert.Equal(t, "Normal", style.BasedOn.Val)
	require.NotNil(t, style.RunProp)
	assert.Equal(t, "Arial", style.RunProp.Fonts.Ascii)
}

func TestWriteOverwritesAndStripsInvalidChars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "document.docx")
	require.NoError(t, Write(path, "first", Options{}))
	require.NoError(t, Write(path, "second\x00\x07run", Options{}))

	got, err := ReadText(path)
	require.NoError(t, err)
	assert.Equal(t, "secondrun", got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFailureIsWriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	err := Write(filepath.Join(blocker, "out.docx"), "text", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrWrite)
}
