package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Lllllllleong/documentconverter/internal/docx"
	"github.com/Lllllllleong/documentconverter/internal/imaging"
	"github.com/Lllllllleong/documentconverter/internal/models"
)

// ImageOutputName is the file name of every image pipeline output.
const ImageOutputName = "document.docx"

// ImagePipeline turns a photographed or scanned page into a document.
type ImagePipeline struct {
	transcriber *Transcriber
	options     docx.Options
	threshold   uint8
	recorder    JobRecorder
	sink        ResultSink
}

// NewImagePipeline wires the stages together. recorder and sink may be nil.
func NewImagePipeline(transcriber *Transcriber, options docx.Options, recorder JobRecorder, sink ResultSink) *ImagePipeline {
	return &ImagePipeline{
		transcriber: transcriber,
		options:     options,
		threshold:   imaging.DefaultThreshold,
		recorder:    recorder,
		sink:        sink,
	}
}

// Run binarizes req.SourcePath, transcribes it and writes the text as a
// single styled paragraph.
func (p *ImagePipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	logCtx := slog.With("jobId", req.Scope.ID, "pipeline", models.PipelineImage, "originalFilename", req.OriginalFilename)
	logCtx.Info("Starting image conversion.")

	tracker := newJobTracker(p.recorder, req.Scope.ID, logCtx)
	tracker.start(ctx, models.Job{OriginalFilename: req.OriginalFilename, Pipeline: models.PipelineImage})

	result, err := p.run(ctx, tracker, req)
	if err != nil {
		logCtx.Error("Image conversion failed", "error", err)
		tracker.fail(ctx, err)
		return nil, fmt.Errorf("failed to process the image: %w", err)
	}
	tracker.advance(ctx, models.StatusDone, nil)
	logCtx.Info("Image conversion complete.", "outputPath", result.OutputPath)
	return result, nil
}

func (p *ImagePipeline) run(ctx context.Context, tracker *jobTracker, req Request) (*Result, error) {
	fileHash, err := fingerprint(req.SourcePath)
	if err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusSaved, map[string]interface{}{"fileHash": fileHash})

	processedPath := filepath.Join(req.Scope.UploadDir, imaging.ProcessedImageName)
	if err := imaging.Preprocess(req.SourcePath, processedPath, p.threshold); err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusExtracted, map[string]interface{}{"imageCount": 1})

	text, err := p.transcriber.TranscribeFile(ctx, processedPath)
	if err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusTranscribed, nil)

	outputPath := req.Scope.ResultPath(ImageOutputName)
	if err := docx.Write(outputPath, text, p.options); err != nil {
		return nil, err
	}
	result := &Result{
		JobID:      req.Scope.ID,
		Pipeline:   models.PipelineImage,
		OutputPath: outputPath,
		Filename:   ImageOutputName,
		ImageCount: 1,
	}
	if err := publish(ctx, p.sink, result); err != nil {
		return nil, err
	}
	tracker.advance(ctx, models.StatusWritten, map[string]interface{}{"outputPath": outputPath})
	return result, nil
}
