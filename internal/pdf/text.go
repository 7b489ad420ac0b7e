package pdf

import (
	"context"
	"fmt"
	"strings"

	textpdf "github.com/ledongthuc/pdf"

	"github.com/Lllllllleong/documentconverter/internal/models"
	"github.com/Lllllllleong/documentconverter/internal/textnorm"
)

// wordGap is the TJ displacement, in thousandths of text space, past which
// two runs are treated as separate words.
const wordGap = -250

// TextBlock is one block of text in reading order.
type TextBlock struct {
	PageIndex int
	Ordinal   int
	Text      string
}

// Blocks returns the text blocks of every page, page ascending and then in
// content stream order. A block is one BT/ET text object.
func (d *Document) Blocks(ctx context.Context) ([]TextBlock, error) {
	var blocks []TextBlock
	for pageNr := 1; pageNr <= d.PageCount(); pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts, err := pageBlocks(d.reader.Page(pageNr))
		if err != nil {
			return nil, models.NewStageError(models.StageExtractText, models.ErrSourceOpen, fmt.Errorf("page %d: %w", pageNr, err))
		}
		for i, text := range texts {
			blocks = append(blocks, TextBlock{PageIndex: pageNr - 1, Ordinal: i, Text: text})
		}
	}
	return blocks, nil
}

// Text lays the blocks out as plain text: every block followed by a line
// feed, every page followed by one more, then normalized with textnorm.Clean.
func (d *Document) Text(ctx context.Context) (string, error) {
	blocks, err := d.Blocks(ctx)
	if err != nil {
		return "", err
	}
	return layoutBlocks(blocks, d.PageCount()), nil
}

func layoutBlocks(blocks []TextBlock, pageCount int) string {
	var b strings.Builder
	next := 0
	for page := 0; page < pageCount; page++ {
		for next < len(blocks) && blocks[next].PageIndex == page {
			b.WriteString(strings.TrimSpace(blocks[next].Text))
			b.WriteByte('\n')
			next++
		}
		b.WriteByte('\n')
	}
	return textnorm.Clean(b.String())
}

// pageBlocks runs the page content stream through the interpreter and
// collects one block per text object. The reader panics on malformed
// streams; that is reported as an error.
func pageBlocks(page textpdf.Page) (blocks []string, err error) {
	if page.V.IsNull() {
		return nil, nil
	}
	contents := page.V.Key("Contents")
	if contents.Kind() == textpdf.Null {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			blocks = nil
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()

	c := newBlockCollector(page)
	textpdf.Interpret(contents, c.handle)
	if c.inText {
		c.flush()
	}
	return c.blocks, nil
}

type blockCollector struct {
	page     textpdf.Page
	encoders map[string]textpdf.TextEncoding
	enc      textpdf.TextEncoding

	inText bool
	cur    strings.Builder
	blocks []string
}

func newBlockCollector(page textpdf.Page) *blockCollector {
	return &blockCollector{
		page:     page,
		encoders: make(map[string]textpdf.TextEncoding),
	}
}

// encoder returns the decoder of a page font. Fonts missing from the
// resources decode as PDFDocEncoding.
func (c *blockCollector) encoder(name string) textpdf.TextEncoding {
	if enc, ok := c.encoders[name]; ok {
		return enc
	}
	enc := c.page.Font(name).Encoder()
	c.encoders[name] = enc
	return enc
}

func (c *blockCollector) decode(v textpdf.Value) string {
	if v.Kind() != textpdf.String {
		return ""
	}
	if c.enc == nil {
		c.enc = c.encoder("")
	}
	return c.enc.Decode(v.RawString())
}

func (c *blockCollector) newline() {
	s := c.cur.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		c.cur.WriteByte('\n')
	}
}

func (c *blockCollector) flush() {
	if text := strings.TrimSpace(c.cur.String()); text != "" {
		c.blocks = append(c.blocks, text)
	}
	c.cur.Reset()
}

func (c *blockCollector) handle(stk *textpdf.Stack, op string) {
	n := stk.Len()
	args := make([]textpdf.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = stk.Pop()
	}

	switch op {
	case "BT":
		c.inText = true
		c.cur.Reset()
		return
	case "ET":
		if c.inText {
			c.flush()
		}
		c.inText = false
		return
	case "Tf":
		if n >= 1 {
			c.enc = c.encoder(args[0].Name())
		}
		return
	}
	if !c.inText {
		return
	}

	switch op {
	case "Tj":
		if n >= 1 {
			c.cur.WriteString(c.decode(args[n-1]))
		}
	case "'", "\"":
		if n >= 1 {
			c.newline()
			c.cur.WriteString(c.decode(args[n-1]))
		}
	case "TJ":
		if n < 1 || args[n-1].Kind() != textpdf.Array {
			return
		}
		runs := args[n-1]
		for i := 0; i < runs.Len(); i++ {
			el := runs.Index(i)
			switch el.Kind() {
			case textpdf.String:
				c.cur.WriteString(c.decode(el))
			case textpdf.Integer, textpdf.Real:
				if el.Float64() <= wordGap {
					c.cur.WriteByte(' ')
				}
			}
		}
	case "T*", "Tm":
		c.newline()
	case "Td", "TD":
		if c.cur.Len() == 0 {
			return
		}
		if n >= 2 && args[n-1].Float64() != 0 {
			c.newline()
		} else if !strings.HasSuffix(c.cur.String(), " ") {
			c.cur.WriteByte(' ')
		}
	}
}
