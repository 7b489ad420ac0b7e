package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/documentconverter/internal/gcp"
	"github.com/Lllllllleong/documentconverter/internal/models"
	"github.com/Lllllllleong/documentconverter/internal/server"
	"github.com/Lllllllleong/documentconverter/internal/services"
)

var (
	converterInstance *services.Converter
	router            http.Handler
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleDocumentConverter" serves uploads and downloads; "ConvertUploadedObject"
	// converts files dropped into the upload bucket.
	functions.HTTP("HandleDocumentConverter", handleDocumentConverter)
	functions.CloudEvent("ConvertUploadedObject", convertUploadedObject)
}

// main runs the functions locally. Cloud Functions only uses the registrations in init.
func main() {
	_ = godotenv.Load()
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.StartHostPort("", port); err != nil {
		slog.Error("Functions framework stopped", "error", err)
		os.Exit(1)
	}
}

// initialize builds the converter once per instance.
func initialize() error {
	once.Do(func() {
		converterInstance, initErr = services.NewConverter(context.Background())
		if initErr != nil {
			return
		}
		config := converterInstance.Config
		router = server.New(converterInstance.PDF, converterInstance.Image, config.ScratchRoot, config.MaxUploadBytes).Router()
	})
	return initErr
}

// handleDocumentConverter is the HTTP entry point.
func handleDocumentConverter(w http.ResponseWriter, r *http.Request) {
	if err := initialize(); err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}

// convertUploadedObject is the CloudEvent entry point for finalized GCS objects.
func convertUploadedObject(ctx context.Context, e cloudevents.Event) error {
	if err := initialize(); err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		return err
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	result, err := converterInstance.ProcessGCSEvent(ctx, gcsEvent)
	if err != nil {
		if errors.Is(err, models.ErrUpload) {
			// Retrying cannot fix a bad upload; acknowledge the event.
			return nil
		}
		return err
	}
	slog.Info("Object converted.", "gcsObject", gcsEvent.Name, "jobId", result.JobID, "resultUri", result.ResultURI)
	return nil
}
