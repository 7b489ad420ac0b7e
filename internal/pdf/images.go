package pdf

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/Lllllllleong/documentconverter/internal/imaging"
	"github.com/Lllllllleong/documentconverter/internal/models"
)

// EmbeddedImage is a raw image payload found on a page.
type EmbeddedImage struct {
	PageIndex int
	Ordinal   int
	ObjNr     int
	Ext       string
	Data      []byte
}

// FileName returns the 1-indexed scratch file name for the image.
func (img EmbeddedImage) FileName() string {
	return ImageFileName(img.PageIndex, img.Ordinal, img.Ext)
}

// ImageFileName builds page_<page+1>_img_<ordinal+1>.<ext>.
func ImageFileName(pageIndex, ordinal int, ext string) string {
	return fmt.Sprintf("page_%d_img_%d.%s", pageIndex+1, ordinal+1, ext)
}

// Images returns the embedded images of every page. Within a page, images
// are ordered by object number, which follows the order they were written.
func (d *Document) Images(ctx context.Context) ([]EmbeddedImage, error) {
	var out []EmbeddedImage
	for pageNr := 1; pageNr <= d.PageCount(); pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := pdfcpu.ExtractPageImages(d.ctx, pageNr, false)
		if err != nil {
			return nil, models.NewStageError(models.StageExtractImages, models.ErrImageDecode, fmt.Errorf("page %d: %w", pageNr, err))
		}
		objNrs := make([]int, 0, len(found))
		for objNr := range found {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for ordinal, objNr := range objNrs {
			img := found[objNr]
			data, err := io.ReadAll(img)
			if err != nil {
				return nil, models.NewStageError(models.StageExtractImages, models.ErrImageDecode, fmt.Errorf("page %d object %d: %w", pageNr, objNr, err))
			}
			out = append(out, EmbeddedImage{
				PageIndex: pageNr - 1,
				Ordinal:   ordinal,
				ObjNr:     objNr,
				Ext:       img.FileType,
				Data:      data,
			})
		}
	}
	return out, nil
}

// SaveImages decodes every embedded image and re-encodes it into outputDir
// under its page_N_img_M name. The returned paths follow extraction order.
// A payload that cannot be decoded aborts the whole extraction.
func (d *Document) SaveImages(ctx context.Context, outputDir string) ([]string, error) {
	images, err := d.Images(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(images))
	for _, img := range images {
		decoded, _, err := imaging.Decode(img.Data)
		if err != nil {
			return nil, models.NewStageError(models.StageExtractImages, models.ErrImageDecode, fmt.Errorf("%s: %w", img.FileName(), err))
		}
		dest := filepath.Join(outputDir, img.FileName())
		if err := imaging.Save(dest, decoded, img.Ext); err != nil {
			return nil, models.NewStageError(models.StageExtractImages, models.ErrWrite, fmt.Errorf("%s: %w", img.FileName(), err))
		}
		paths = append(paths, dest)
	}
	return paths, nil
}
