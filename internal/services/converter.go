package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/documentconverter/internal/docx"
	"github.com/Lllllllleong/documentconverter/internal/gcp"
	"github.com/Lllllllleong/documentconverter/internal/imaging"
	"github.com/Lllllllleong/documentconverter/internal/llm"
	"github.com/Lllllllleong/documentconverter/internal/models"
	"github.com/Lllllllleong/documentconverter/internal/pdf"
)

// Converter owns the service clients and both pipelines. It is built once
// per process and shared by every request.
type Converter struct {
	Config *Config
	PDF    Pipeline
	Image  Pipeline

	storageClient *storage.Client
	closers       []io.Closer

	// fetch downloads a source object to a local path. Nil uses Cloud Storage.
	fetch func(ctx context.Context, bucket, object, destPath string) error
}

// NewConverter creates a Converter from the environment.
func NewConverter(ctx context.Context) (*Converter, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewConverterFromConfig(ctx, config)
}

// NewConverterFromConfig creates the generative client, the optional job
// recorder and result sink, and both pipelines.
func NewConverterFromConfig(ctx context.Context, config *Config) (*Converter, error) {
	c := &Converter{Config: config}

	generator, err := c.newGenerator(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	var recorder JobRecorder = LogRecorder{}
	if config.FirestoreCollection != "" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		firestoreRecorder := gcp.NewFirestoreRecorder(firestoreClient, config.FirestoreCollection)
		c.closers = append(c.closers, firestoreRecorder)
		recorder = firestoreRecorder
	}

	var sink ResultSink
	if config.ResultsBucket != "" {
		storageClient, err := c.storage(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
		sink = gcp.NewGCSResultSink(storageClient, config.ResultsBucket)
	}

	c.PDF, c.Image = NewPipelines(config, generator, recorder, sink)
	slog.Info("Document converter initialized.", "provider", config.Provider, "model", config.Model, "scratchRoot", config.ScratchRoot)
	return c, nil
}

// NewPipelines builds both pipelines around generator.
func NewPipelines(config *Config, generator Generator, recorder JobRecorder, sink ResultSink) (*PDFPipeline, *ImagePipeline) {
	extractor := pdf.NewExtractor(nil)
	pdfPipeline := NewPDFPipeline(
		extractor,
		extractor,
		NewTranscriber(generator, config.TranscribePrompt, config.TranscribeConcurrency, config.RemoteCallTimeout),
		NewRestructurer(generator, config.RestructurePrompt, config.RemoteCallTimeout),
		recorder,
		sink,
	)
	imagePipeline := NewImagePipeline(
		NewTranscriber(generator, config.ScanPrompt, 1, config.RemoteCallTimeout),
		docx.Options{Style: config.ImageDocStyle, Font: config.ImageDocFont},
		recorder,
		sink,
	)
	return pdfPipeline, imagePipeline
}

func (c *Converter) newGenerator(ctx context.Context) (Generator, error) {
	switch c.Config.Provider {
	case ProviderOpenAI:
		client, err := llm.NewOpenAIClient(c.Config.OpenAIAPIKey, c.Config.OpenAIBaseURL, c.Config.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return client, nil
	default:
		client, err := gcp.NewVertexClient(ctx, c.Config.ProjectID, c.Config.VertexAIRegion, c.Config.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		c.closers = append(c.closers, client)
		return client, nil
	}
}

func (c *Converter) storage(ctx context.Context) (*storage.Client, error) {
	if c.storageClient != nil {
		return c.storageClient, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	c.storageClient = client
	c.closers = append(c.closers, client)
	return client, nil
}

// PipelineFor picks the pipeline kind from a file name's extension.
func PipelineFor(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return models.PipelinePDF, nil
	case imaging.IsSupported(ext):
		return models.PipelineImage, nil
	default:
		return "", models.NewStageError(models.StageIntake, models.ErrUpload, fmt.Errorf("unsupported file type %q", ext))
	}
}

// Pipeline returns the pipeline of the given kind.
func (c *Converter) Pipeline(kind string) Pipeline {
	if kind == models.PipelineImage {
		return c.Image
	}
	return c.PDF
}

// ProcessGCSEvent converts an object finalized in an upload bucket. The
// result is published to RESULTS_BUCKET, so one must be configured.
func (c *Converter) ProcessGCSEvent(ctx context.Context, e models.GCSEvent) (*Result, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	if c.Config.ResultsBucket == "" {
		return nil, errors.New("RESULTS_BUCKET environment variable must be set to process storage events")
	}
	kind, err := PipelineFor(e.Name)
	if err != nil {
		logCtx.Warn("Skipping object with unsupported type.", "error", err)
		return nil, err
	}
	fetch := c.fetch
	if fetch == nil {
		storageClient, err := c.storage(ctx)
		if err != nil {
			return nil, err
		}
		fetch = func(ctx context.Context, bucket, object, destPath string) error {
			return gcp.DownloadObject(ctx, storageClient, bucket, object, destPath)
		}
	}

	scope, err := NewScratchScope(c.Config.ScratchRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scope.Remove(); err != nil {
			logCtx.Warn("Failed to remove scratch scope", "path", scope.Root, "error", err)
		}
	}()

	sourcePath := scope.UploadPath(e.Name)
	if err := fetch(ctx, e.Bucket, e.Name, sourcePath); err != nil {
		logCtx.Error("Failed to download source object", "error", err)
		return nil, downloadError(err)
	}

	return c.Pipeline(kind).Run(ctx, Request{Scope: scope, SourcePath: sourcePath, OriginalFilename: e.Name})
}

// downloadError classifies a failed source download. Only a missing object
// is a bad upload; anything else is returned as is so the event is retried.
func downloadError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return models.NewStageError(models.StageIntake, models.ErrUpload, err)
	}
	return fmt.Errorf("failed to download source object: %w", err)
}

// Close releases every client the Converter created.
func (c *Converter) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// SaveUpload copies an uploaded stream into the scope's upload directory.
func SaveUpload(scope *ScratchScope, filename string, src io.Reader) (string, error) {
	dest := scope.UploadPath(filename)
	file, err := os.Create(dest)
	if err != nil {
		return "", models.NewStageError(models.StageIntake, models.ErrWrite, err)
	}
	if _, err := io.Copy(file, src); err != nil {
		_ = file.Close()
		return "", models.NewStageError(models.StageIntake, models.ErrUpload, err)
	}
	if err := file.Close(); err != nil {
		return "", models.NewStageError(models.StageIntake, models.ErrWrite, err)
	}
	return dest, nil
}
