package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// SystemPrompt frames every request sent to the model.
const SystemPrompt = "You are a document transcription assistant. You read text from scanned images and documents and return it faithfully, without commentary."

// VertexClient is a pre-configured Gemini model on Vertex AI.
type VertexClient struct {
	Model      *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexClient creates a new client for modelName in the given project and region.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Low temperature keeps transcriptions literal.
		Temperature: genai.Ptr[float32](0.1),
	}

	return &VertexClient{
		Model:      model,
		baseClient: baseClient,
	}, nil
}

// GenerateFromImage sends prompt together with an inline image.
func (c *VertexClient) GenerateFromImage(ctx context.Context, prompt string, image models.ImagePart) (string, error) {
	blob := genai.Blob{MIMEType: image.MIMEType, Data: image.Data}
	resp, err := c.Model.GenerateContent(ctx, genai.Text(prompt), blob)
	if err != nil {
		return "", generateError(err)
	}
	return ResponseText(resp)
}

// GenerateFromText sends prompt followed by text as a second part.
func (c *VertexClient) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	resp, err := c.Model.GenerateContent(ctx, genai.Text(prompt), genai.Text(text))
	if err != nil {
		return "", generateError(err)
	}
	return ResponseText(resp)
}

// generateError wraps a GenerateContent failure. Blocked prompts and
// candidates map to models.ErrRefused.
func generateError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("gemini blocked the request: %w: %w", models.ErrRefused, err)
	}
	return fmt.Errorf("failed to generate content from gemini: %w", err)
}

// blockingFinishReasons end a candidate without a usable answer.
var blockingFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonRecitation:        true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonSpii:              true,
}

// ResponseText concatenates the text parts of the first candidate. A
// candidate stopped by a content filter yields models.ErrRefused.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil
	}
	candidate := resp.Candidates[0]
	if blockingFinishReasons[candidate.FinishReason] {
		return "", fmt.Errorf("gemini stopped with finish reason %s: %w", candidate.FinishReason, models.ErrRefused)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", nil
	}

	var content strings.Builder
	var textPartsFound int
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
			textPartsFound++
		}
	}
	if textPartsFound > 1 {
		slog.Warn("Gemini response contained several text parts; they have been concatenated.", "parts", textPartsFound)
	}
	return content.String(), nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
