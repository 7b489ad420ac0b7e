// Package pdf opens PDF files and pulls ordered text blocks and embedded
// raster images out of them. pdfcpu serves the image tables; text goes
// through ledongthuc/pdf, which decodes font encodings and ToUnicode maps.
package pdf

import (
	"fmt"
	"os"
	"sync"

	textpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// Document is an opened PDF. It holds the underlying file until Close is
// called; Close is safe to call more than once.
type Document struct {
	path   string
	file   *os.File
	ctx    *model.Context
	reader *textpdf.Reader

	closeOnce sync.Once
	closeErr  error
}

// Open reads, validates and optimizes the PDF at path. Optimization fills in
// the per-page image tables that image extraction relies on.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewStageError(models.StageOpen, models.ErrSourceOpen, err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		_ = f.Close()
		return nil, models.NewStageError(models.StageOpen, models.ErrSourceOpen, fmt.Errorf("pdfcpu read: %w", err))
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, models.NewStageError(models.StageOpen, models.ErrSourceOpen, err)
	}
	reader, err := textpdf.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, models.NewStageError(models.StageOpen, models.ErrSourceOpen, fmt.Errorf("text reader: %w", err))
	}
	return &Document{path: path, file: f, ctx: ctx, reader: reader}, nil
}

// Path returns the file the document was opened from.
func (d *Document) Path() string { return d.path }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.ctx.PageCount }

// Close releases the file handle.
func (d *Document) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.file.Close()
	})
	return d.closeErr
}
