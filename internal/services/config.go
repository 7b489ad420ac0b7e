package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Lllllllleong/documentconverter/internal/docx"
	"github.com/Lllllllleong/documentconverter/internal/gcp"
)

// Model providers accepted in MODEL_PROVIDER.
const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
)

const defaultMaxUploadBytes = 50 << 20

// Config holds all configuration for the converter.
type Config struct {
	Provider       string
	ProjectID      string
	VertexAIRegion string
	Model          string
	OpenAIAPIKey   string
	OpenAIBaseURL  string

	ScratchRoot string

	TranscribePrompt  string
	ScanPrompt        string
	RestructurePrompt string

	ImageDocStyle string
	ImageDocFont  string

	TranscribeConcurrency int
	RemoteCallTimeout     time.Duration

	ResultsBucket       string
	FirestoreCollection string
	MaxUploadBytes      int64
}

// LoadConfig loads and validates all environment variables for the converter.
func LoadConfig() (*Config, error) {
	concurrency, err := envInt("TRANSCRIBE_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	timeoutSeconds, err := envInt("REMOTE_CALL_TIMEOUT_SECONDS", 0)
	if err != nil {
		return nil, err
	}
	maxUpload, err := envInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Provider:              gcp.GetEnv("MODEL_PROVIDER", ProviderVertex),
		ProjectID:             gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion:        gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		Model:                 gcp.GetEnv("GENERATIVE_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:          gcp.GetEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         gcp.GetEnv("OPENAI_BASE_URL", ""),
		ScratchRoot:           gcp.GetEnv("SCRATCH_ROOT", filepath.Join(os.TempDir(), "document-converter")),
		TranscribePrompt:      gcp.GetEnv("TRANSCRIBE_PROMPT", DefaultTranscribePrompt),
		ScanPrompt:            gcp.GetEnv("SCAN_PROMPT", DefaultScanPrompt),
		RestructurePrompt:     gcp.GetEnv("RESTRUCTURE_PROMPT", DefaultRestructurePrompt),
		ImageDocStyle:         gcp.GetEnv("IMAGE_DOC_STYLE", docx.DefaultStyle),
		ImageDocFont:          gcp.GetEnv("IMAGE_DOC_FONT", "Times New Roman"),
		TranscribeConcurrency: concurrency,
		RemoteCallTimeout:     time.Duration(timeoutSeconds) * time.Second,
		ResultsBucket:         gcp.GetEnv("RESULTS_BUCKET", ""),
		FirestoreCollection:   gcp.GetEnv("FIRESTORE_COLLECTION", ""),
		MaxUploadBytes:        int64(maxUpload),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the combinations LoadConfig cannot default.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderVertex:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID environment variable must be set for the %s provider", c.Provider)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable must be set for the %s provider", c.Provider)
		}
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.Provider)
	}
	if c.FirestoreCollection != "" && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set when FIRESTORE_COLLECTION is set")
	}
	if c.TranscribeConcurrency < 1 {
		return fmt.Errorf("TRANSCRIBE_CONCURRENCY must be at least 1, got %d", c.TranscribeConcurrency)
	}
	if c.RemoteCallTimeout < 0 {
		return fmt.Errorf("REMOTE_CALL_TIMEOUT_SECONDS must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func envInt(key string, fallback int) (int, error) {
	raw := gcp.GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}
