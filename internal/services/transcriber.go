package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/documentconverter/internal/imaging"
	"github.com/Lllllllleong/documentconverter/internal/models"
)

// Transcription is the text the model read from one image.
type Transcription struct {
	Source string
	Text   string
}

// Transcriber sends images to the generative model with a fixed prompt.
type Transcriber struct {
	generator   Generator
	prompt      string
	concurrency int
	timeout     time.Duration
}

// NewTranscriber returns a Transcriber. A concurrency of 1 or less issues
// the calls one at a time in order; a zero timeout waits indefinitely.
func NewTranscriber(generator Generator, prompt string, concurrency int, timeout time.Duration) *Transcriber {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Transcriber{
		generator:   generator,
		prompt:      prompt,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// TranscribeFile reads the image at path from disk and returns the model's
// transcription, trimmed of surrounding whitespace.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	logCtx := slog.With("image", filepath.Base(path))

	data, mimeType, err := imaging.ReadEncoded(path)
	if err != nil {
		return "", models.NewStageError(models.StageTranscribe, models.ErrImageDecode, err)
	}

	callCtx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	response, err := t.generator.GenerateFromImage(callCtx, t.prompt, models.ImagePart{MIMEType: mimeType, Data: data})
	if err != nil {
		logCtx.Error("Call to generative model for transcription failed", "error", err)
		return "", models.NewStageError(models.StageTranscribe, models.ErrRemoteService, err)
	}

	text := strings.TrimSpace(response)
	if text == "" {
		logCtx.Warn("No text transcribed from image. Treating as empty.")
	}
	return text, nil
}

// TranscribeAll transcribes every path and returns the results in the order
// of paths. The first failure fails the whole batch.
func (t *Transcriber) TranscribeAll(ctx context.Context, paths []string) ([]Transcription, error) {
	results := make([]Transcription, len(paths))

	if t.concurrency == 1 {
		for i, path := range paths {
			text, err := t.TranscribeFile(ctx, path)
			if err != nil {
				return nil, err
			}
			results[i] = Transcription{Source: path, Text: text}
		}
		return results, nil
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(t.concurrency)
	for i, path := range paths {
		eg.Go(func() error {
			text, err := t.TranscribeFile(gctx, path)
			if err != nil {
				return err
			}
			results[i] = Transcription{Source: path, Text: text}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
