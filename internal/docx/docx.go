// Package docx writes single-paragraph WordprocessingML (.docx) documents.
package docx

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	godocxdoc "github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/ctypes"
	"github.com/gomutex/godocx/wml/stypes"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// DefaultStyle is the paragraph style every document defines.
const DefaultStyle = "Normal"

// Options controls paragraph styling. The zero value produces an unstyled
// Normal paragraph.
type Options struct {
	// Style names the paragraph style. Empty means Normal.
	Style string
	// Font is applied to the paragraph style, e.g. "Times New Roman".
	Font string
}

// invalidXMLChars are control characters XML 1.0 cannot carry.
var invalidXMLChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x{FFFE}\x{FFFF}]`)

var styleIDChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Write creates a document at path whose body is exactly one paragraph
// holding text. Line feeds become line breaks and tabs become tab stops.
// An existing file at path is replaced.
func Write(path, text string, opts Options) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return models.NewStageError(models.StageWrite, models.ErrWrite, fmt.Errorf("new document: %w", err))
	}

	id := styleID(opts.Style)
	style := paragraphStyle(doc, id, opts.Style)
	if opts.Font != "" {
		if style.RunProp == nil {
			style.RunProp = &ctypes.RunProperty{}
		}
		style.RunProp.Fonts = &ctypes.RunFonts{Ascii: opts.Font, HAnsi: opts.Font, EastAsia: opts.Font, CS: opts.Font}
	}

	para := doc.AddEmptyParagraph()
	if id != DefaultStyle {
		para.Style(id)
	}
	ct := para.GetCT()
	ct.Children = append(ct.Children, ctypes.ParagraphChild{Run: textRun(text)})

	if err := save(doc, path); err != nil {
		return models.NewStageError(models.StageWrite, models.ErrWrite, err)
	}
	return nil
}

// ReadText returns the text of the document at path. Paragraphs are joined
// with line feeds; breaks and tabs come back as line feeds and tabs.
func ReadText(path string) (string, error) {
	doc, err := godocx.OpenDocument(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	if doc.Document == nil || doc.Document.Body == nil {
		return "", nil
	}

	var paragraphs []string
	for _, child := range doc.Document.Body.Children {
		if child.Para == nil {
			continue
		}
		var b strings.Builder
		for _, pc := range child.Para.GetCT().Children {
			if pc.Run == nil {
				continue
			}
			for _, rc := range pc.Run.Children {
				switch {
				case rc.Text != nil:
					b.WriteString(rc.Text.Text)
				case rc.Break != nil:
					b.WriteByte('\n')
				case rc.Tab != nil:
					b.WriteByte('\t')
				}
			}
		}
		paragraphs = append(paragraphs, b.String())
	}
	return strings.Join(paragraphs, "\n"), nil
}

// textRun builds one run for text.
func textRun(text string) *ctypes.Run {
	text = invalidXMLChars.ReplaceAllString(strings.ReplaceAll(text, "\r\n", "\n"), "")
	text = strings.ReplaceAll(text, "\r", "\n")

	run := &ctypes.Run{}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			run.Children = append(run.Children, ctypes.RunChild{Break: &ctypes.Break{}})
		}
		for j, segment := range strings.Split(line, "\t") {
			if j > 0 {
				run.Children = append(run.Children, ctypes.RunChild{Tab: &ctypes.Empty{}})
			}
			if segment != "" {
				run.Children = append(run.Children, ctypes.RunChild{Text: ctypes.TextFromString(segment)})
			}
		}
	}
	return run
}

// paragraphStyle returns the style definition with the given id, adding a
// custom style based on Normal when the template lacks it.
func paragraphStyle(doc *godocxdoc.RootDoc, id, name string) *ctypes.Style {
	for i := range doc.DocStyles.StyleList {
		s := &doc.DocStyles.StyleList[i]
		if s.ID != nil && *s.ID == id && s.Type != nil && *s.Type == stypes.StyleTypeParagraph {
			return s
		}
	}

	styleType := stypes.StyleTypeParagraph
	custom := stypes.OnOffOne
	doc.DocStyles.StyleList = append(doc.DocStyles.StyleList, ctypes.Style{
		ID:          &id,
		Type:        &styleType,
		CustomStyle: &custom,
		Name:        &ctypes.CTString{Val: name},
		BasedOn:     &ctypes.CTString{Val: DefaultStyle},
	})
	return &doc.DocStyles.StyleList[len(doc.DocStyles.StyleList)-1]
}

// save writes the package next to path and renames it into place.
func save(doc *godocxdoc.RootDoc, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".docx-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := doc.Write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move document into place: %w", err)
	}
	return nil
}

func styleID(name string) string {
	if name == "" {
		return DefaultStyle
	}
	id := styleIDChars.ReplaceAllString(name, "")
	if id == "" {
		return DefaultStyle
	}
	return id
}
