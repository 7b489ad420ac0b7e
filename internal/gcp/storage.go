package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Upload retry policy.
const (
	uploadMaxRetries   = 4
	uploadInitialDelay = 1 * time.Second
	uploadTimeout      = 50 * time.Second
)

// GCSResultSink copies finished documents into a bucket.
type GCSResultSink struct {
	client *storage.Client
	bucket string
	// backoff is the first retry delay; it doubles after every failure.
	backoff time.Duration
}

// NewGCSResultSink publishes into bucket.
func NewGCSResultSink(client *storage.Client, bucket string) *GCSResultSink {
	return &GCSResultSink{client: client, bucket: bucket, backoff: uploadInitialDelay}
}

// Publish uploads the file at localPath as objectName and returns its gs://
// URI. The write only succeeds if the object does not exist yet, so a retry
// after a lost response is not a failure.
func (s *GCSResultSink) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	uri := fmt.Sprintf("gs://%s/%s", s.bucket, objectName)
	backoff := s.backoff
	var lastErr error

	for i := 0; i < uploadMaxRetries; i++ {
		err := s.upload(ctx, localPath, objectName)
		if err == nil {
			return uri, nil
		}
		if isPreconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", objectName)
			return uri, nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", uploadMaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", objectName, "error", ctx.Err())
			return "", ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", objectName, "error", lastErr)
	return "", fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

func (s *GCSResultSink) upload(ctx context.Context, localPath, objectName string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	writeCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	gcsWriter := s.client.Bucket(s.bucket).Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	gcsWriter.ContentType = contentTypeFor(objectName)

	if _, err := io.Copy(gcsWriter, localFile); err != nil {
		_ = gcsWriter.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := gcsWriter.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
	}
	return nil
}

// DownloadObject streams gs://bucket/object into destPath.
func DownloadObject(ctx context.Context, client *storage.Client, bucket, object, destPath string) error {
	gcsReader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", destPath, err)
	}
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create local file at %s: %w", destPath, err)
	}
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		_ = localFile.Close()
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return localFile.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func contentTypeFor(name string) string {
	if filepath.Ext(name) == ".docx" {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}
