package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/documentconverter/internal/docx"
	"github.com/Lllllllleong/documentconverter/internal/models"
)

// PDFOutputName is the file name of every PDF pipeline output.
const PDFOutputName = "converted_document.docx"

// TextExtractor returns the normalized block text of a document. The
// document must be released before it returns.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// ImageExtractor saves the embedded images of a document into outputDir and
// returns their paths in extraction order. The document must be released
// before it returns.
type ImageExtractor interface {
	ExtractImages(ctx context.Context, path, outputDir string) ([]string, error)
}

// PDFPipeline turns a PDF into a document: block text and image
// transcriptions are merged, restructured by the model and written out.
type PDFPipeline struct {
	text         TextExtractor
	images       ImageExtractor
	transcriber  *Transcriber
	restructurer *Restructurer
	recorder     JobRecorder
	sink         ResultSink
}

// NewPDFPipeline wires the stages together. recorder and sink may be nil.
func NewPDFPipeline(text TextExtractor, images ImageExtractor, transcriber *Transcriber, restructurer *Restructurer, recorder JobRecorder, sink ResultSink) *PDFPipeline {
	return &PDFPipeline{
		text:         text,
		images:       images,
		transcriber:  transcriber,
		restructurer: restructurer,
		recorder:     recorder,
		sink:         sink,
	}
}

// Run converts req.SourcePath. Any stage failure fails the whole run and no
// output document is left behind for it.
func (p *PDFPipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	logCtx := slog.With("jobId", req.Scope.ID, "pipeline", models.PipelinePDF, "originalFilename", req.OriginalFilename)
	logCtx.Info("Starting PDF conversion.")

	tracker := newJobTracker(p.recorder, req.Scope.ID, logCtx)
	tracker.start(ctx, models.Job{OriginalFilename: req.OriginalFilename, Pipeline: models.PipelinePDF})

	result, err := p.run(ctx, logCtx, tracker, req)
	if err != nil {
		logCtx.Error("PDF conversion failed", "error", err)
		tracker.fail(ctx, err)
		return nil, fmt.Errorf("failed to process the PDF: %w", err)
	}
	tracker.advance(ctx, models.StatusDone, nil)
	logCtx.Info("PDF conversion complete.", "outputPath", result.OutputPath, "imageCount", result.ImageCount)
	return result, nil
}

func (p *PDFPipeline) run(ctx context.Context, logCtx *slog.Logger, tracker *jobTracker, req Request) (*Result, error) {
	fileHash, err := fingerprint(req.SourcePath)
	if err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusSaved, map[string]interface{}{"fileHash": fileHash})

	blockText, err := p.text.ExtractText(ctx, req.SourcePath)
	if err != nil {
		return nil, err
	}
	imagePaths, err := p.images.ExtractImages(ctx, req.SourcePath, req.Scope.ImagesDir)
	if err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusExtracted, map[string]interface{}{"imageCount": len(imagePaths)})
	logCtx.Info("Extraction complete.", "chars", len(blockText), "imageCount", len(imagePaths))

	transcriptions, err := p.transcriber.TranscribeAll(ctx, imagePaths)
	if err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusTranscribed, nil)

	merged := Merge(blockText, transcriptions)
	tracker.advance(ctx, models.StatusMerged, nil)

	restructured, err := p.restructurer.Restructure(ctx, merged)
	if err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusRestructured, nil)

	outputPath := req.Scope.ResultPath(PDFOutputName)
	if err := docx.Write(outputPath, restructured, docx.Options{}); err != nil {
		return nil, err
	}
	result := &Result{
		JobID:      req.Scope.ID,
		Pipeline:   models.PipelinePDF,
		OutputPath: outputPath,
		Filename:   PDFOutputName,
		ImageCount: len(imagePaths),
	}
	if err := publish(ctx, p.sink, result); err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusWritten, map[string]interface{}{"outputPath": outputPath})
	return result, nil
}
