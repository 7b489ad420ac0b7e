package pdf

import (
	"context"
	"log/slog"
)

// Extractor opens a PDF for each call and closes it before returning, on
// success and on failure alike.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor returns an Extractor logging to logger (slog.Default if nil).
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractText returns the normalized block text of the PDF at path.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	doc, err := Open(path)
	if err != nil {
		return "", err
	}
	defer e.release(doc)

	text, err := doc.Text(ctx)
	if err != nil {
		return "", err
	}
	e.logger.Debug("Extracted block text.", "path", path, "pageCount", doc.PageCount(), "chars", len(text))
	return text, nil
}

// ExtractImages saves every embedded image of the PDF at path into outputDir
// and returns the saved paths in extraction order.
func (e *Extractor) ExtractImages(ctx context.Context, path, outputDir string) ([]string, error) {
	doc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer e.release(doc)

	paths, err := doc.SaveImages(ctx, outputDir)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Extracted embedded images.", "path", path, "pageCount", doc.PageCount(), "imageCount", len(paths))
	return paths, nil
}

func (e *Extractor) release(doc *Document) {
	if err := doc.Close(); err != nil {
		e.logger.Warn("Failed to close source document", "path", doc.Path(), "error", err)
	}
}
