// Package pdftest builds small PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Builder assembles a PDF with correct xref offsets. Objects are numbered
// in the order they are added, starting at 1.
type Builder struct {
	objects [][]byte
}

// Add appends a plain object and returns its number.
func (b *Builder) Add(body string) int {
	b.objects = append(b.objects, []byte(body))
	return len(b.objects)
}

// AddStream appends a stream object; /Length is filled in from data.
func (b *Builder) AddStream(dict string, data []byte) int {
	var obj bytes.Buffer
	fmt.Fprintf(&obj, "<< %s /Length %d >>\nstream\n", dict, len(data))
	obj.Write(data)
	obj.WriteString("\nendstream")
	b.objects = append(b.objects, obj.Bytes())
	return len(b.objects)
}

// Bytes serializes the document with rootObj as the catalog.
func (b *Builder) Bytes(rootObj int) []byte {
	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(b.objects)+1)
	for i, body := range b.objects {
		offsets[i+1] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(body)
		out.WriteString("\nendobj\n")
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(b.objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(b.objects); i++ {
		fmt.Fprintf(&out, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, rootObj, xref)
	return out.Bytes()
}

// JPEG returns a size x size JPEG whose red channel is shade.
func JPEG(t testing.TB, size int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 10), B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// ImageDict is the stream dictionary of a DCT encoded RGB image XObject.
func ImageDict(size int) string {
	return fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode", size, size)
}

// WriteSample writes sample.pdf into dir: page one has the text blocks
// "Hello World" and "Second block" and a 4x4 image, page two has a 2x2 and a
// 3x3 image and no text.
func WriteSample(t testing.TB, dir string) string {
	t.Helper()
	b := &Builder{}
	catalog := b.Add("<< /Type /Catalog /Pages 2 0 R >>")
	b.Add("<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>")
	b.Add("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> /XObject << /Im1 6 0 R >> >> /Contents 7 0 R >>")
	b.Add("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 8 0 R /Im2 9 0 R >> >> /Contents 10 0 R >>")
	b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	b.AddStream(ImageDict(4), JPEG(t, 4, 200))
	b.AddStream("", []byte("BT\n/F1 12 Tf\n72 720 Td\n(Hello World) Tj\nET\nBT\n/F1 12 Tf\n72 700 Td\n(Second block) Tj\nET\nq 40 0 0 40 72 600 cm /Im1 Do Q"))
	b.AddStream(ImageDict(2), JPEG(t, 2, 50))
	b.AddStream(ImageDict(3), JPEG(t, 3, 120))
	b.AddStream("", []byte("q 20 0 0 20 72 600 cm /Im1 Do Q\nq 30 0 0 30 172 600 cm /Im2 Do Q"))
	return write(t, filepath.Join(dir, "sample.pdf"), b.Bytes(catalog))
}

// WriteText writes a single page text.pdf into dir holding one text block.
func WriteText(t testing.TB, dir, text string) string {
	t.Helper()
	return WritePage(t, filepath.Join(dir, "text.pdf"), fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text))
}

// identityCMap maps the two byte codes 0001 and 0002 to "H" and "i".
const identityCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0001> <0048>
<0002> <0069>
endbfchar
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

// WritePage writes a one page PDF at path whose content stream is content.
// The page resources carry /F1, standard Helvetica, and /F2, a Type0 font
// with Identity-H encoding whose ToUnicode map decodes <0001> as "H" and
// <0002> as "i".
func WritePage(t testing.TB, path, content string) string {
	t.Helper()
	b := &Builder{}
	catalog := b.Add("<< /Type /Catalog /Pages 2 0 R >>")
	b.Add("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.Add("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R /F2 6 0 R >> >> /Contents 4 0 R >>")
	b.AddStream("", []byte(content))
	b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	b.Add("<< /Type /Font /Subtype /Type0 /BaseFont /Embedded /Encoding /Identity-H /DescendantFonts [7 0 R] /ToUnicode 9 0 R >>")
	b.Add("<< /Type /Font /Subtype /CIDFontType2 /BaseFont /Embedded /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /FontDescriptor 8 0 R >>")
	b.Add("<< /Type /FontDescriptor /FontName /Embedded /Flags 4 /FontBBox [0 -200 1000 900] /ItalicAngle 0 /Ascent 900 /Descent -200 /CapHeight 700 /StemV 80 >>")
	b.AddStream("", []byte(identityCMap))
	return write(t, path, b.Bytes(catalog))
}

func write(t testing.TB, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
