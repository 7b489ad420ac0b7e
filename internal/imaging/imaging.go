// Package imaging decodes, re-encodes and preprocesses raster images for the
// conversion pipelines.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// Decode parses an encoded image payload. It returns the decoded image and
// the format name registered by its decoder (e.g. "jpeg", "png", "tiff").
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Load reads and decodes the image stored at path.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Encode writes img to w in the format named by ext.
func Encode(w io.Writer, img image.Image, ext string) error {
	switch normalizeExt(ext) {
	case "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case "png":
		return png.Encode(w, img)
	case "tif":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "bmp":
		return bmp.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	default:
		return fmt.Errorf("unsupported output format %q", ext)
	}
}

// Save encodes img into path. The file is flushed and closed before Save
// returns, so callers may reopen it immediately.
func Save(path string, img image.Image, ext string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(file, img, ext); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// MIMEType returns the content type for a file extension, defaulting to PNG.
func MIMEType(ext string) string {
	switch normalizeExt(ext) {
	case "jpg":
		return "image/jpeg"
	case "tif":
		return "image/tiff"
	case "bmp":
		return "image/bmp"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// IsSupported reports whether files with this extension can be fed to the
// image pipeline.
func IsSupported(ext string) bool {
	switch normalizeExt(ext) {
	case "jpg", "png", "tif", "bmp", "gif", "webp":
		return true
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "jpeg", "jpe":
		return "jpg"
	case "tiff":
		return "tif"
	}
	return ext
}

// decodeError marks failures that come from unreadable image data.
func decodeError(stage string, err error) error {
	return models.NewStageError(stage, models.ErrImageDecode, err)
}

// ReadEncoded reads the image file at path as-is and returns its bytes with
// the MIME type of the format it actually holds. Only the header is decoded.
func ReadEncoded(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return data, MIMEType(format), nil
}
