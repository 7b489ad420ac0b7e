package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// Request is one pipeline run over a file already saved inside Scope.
type Request struct {
	Scope            *ScratchScope
	SourcePath       string
	OriginalFilename string
}

// Result describes the output of a successful run.
type Result struct {
	JobID      string
	Pipeline   string
	OutputPath string
	Filename   string
	ImageCount int
	// ResultURI is set when the output was published to a ResultSink.
	ResultURI string
}

// ResultSink receives finished documents, e.g. a GCS bucket.
type ResultSink interface {
	Publish(ctx context.Context, localPath, objectName string) (string, error)
}

// Pipeline converts one saved upload into an output document.
type Pipeline interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

func validateRequest(req Request) error {
	if req.Scope == nil || req.SourcePath == "" {
		return models.NewStageError(models.StageIntake, models.ErrUpload, fmt.Errorf("no file sent"))
	}
	return nil
}

// fingerprint hashes the saved upload, confirming it is readable.
func fingerprint(sourcePath string) (string, error) {
	hash, err := calculateFileHash(sourcePath)
	if err != nil {
		return "", models.NewStageError(models.StageOpen, models.ErrSourceOpen, err)
	}
	return hash, nil
}

func publish(ctx context.Context, sink ResultSink, result *Result) error {
	if sink == nil {
		return nil
	}
	uri, err := sink.Publish(ctx, result.OutputPath, path.Join(result.JobID, result.Filename))
	if err != nil {
		// A run that fails produces no output.
		_ = os.Remove(result.OutputPath)
		return models.NewStageError(models.StageWrite, models.ErrWrite, err)
	}
	result.ResultURI = uri
	return nil
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
