package imaging

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// DefaultThreshold is the binarization cut-off on a 0-255 gray scale.
const DefaultThreshold = 102

// ProcessedImageName is the file written by Preprocess inside a scratch directory.
const ProcessedImageName = "processed_image.png"

// Grayscale converts img to 8-bit luminance.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// BinarizeInverse maps pixels brighter than threshold to black and all
// others to white.
func BinarizeInverse(gray *image.Gray, threshold uint8) *image.Gray {
	out := image.NewGray(gray.Bounds())
	for i, v := range gray.Pix {
		if v > threshold {
			out.Pix[i] = 0
		} else {
			out.Pix[i] = 255
		}
	}
	return out
}

// Preprocess loads the scan at src, converts it to grayscale, applies an
// inverse binary threshold and writes the result as PNG to dst.
// Unreadable input is reported as an image decode error.
func Preprocess(src, dst string, threshold uint8) error {
	img, err := Load(src)
	if err != nil {
		return decodeError(models.StagePreprocess, err)
	}
	binary := BinarizeInverse(Grayscale(img), threshold)
	if err := Save(dst, binary, "png"); err != nil {
		return models.NewStageError(models.StagePreprocess, models.ErrWrite, err)
	}
	return nil
}
