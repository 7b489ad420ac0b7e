// Package llm talks to OpenAI-compatible chat completion endpoints.
package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

const finishReasonContentFilter = "content_filter"

// OpenAIClient sends prompts and images to a chat completion model.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for model. An empty baseURL uses the
// OpenAI API itself.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if apiKey == "" || model == "" {
		return nil, fmt.Errorf("NewOpenAIClient: apiKey and model cannot be empty")
	}

	var opts []option.RequestOption
	opts = append(opts, option.WithAPIKey(apiKey))
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	// Retries would hide failures that must reach the caller.
	opts = append(opts, option.WithMaxRetries(0))

	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, model: model}, nil
}

// GenerateFromImage sends prompt with the image inlined as a data URL.
func (c *OpenAIClient) GenerateFromImage(ctx context.Context, prompt string, image models.ImagePart) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", image.MIMEType, base64.StdEncoding.EncodeToString(image.Data))
	return c.complete(ctx, []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	})
}

// GenerateFromText sends prompt and text as two parts of one user message.
func (c *OpenAIClient) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	return c.complete(ctx, []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.TextContentPart(text),
	})
}

func (c *OpenAIClient) complete(ctx context.Context, parts []openai.ChatCompletionContentPartUnionParam) (string, error) {
	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned from model %s", c.model)
	}
	choice := response.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model %s refused: %q: %w", c.model, choice.Message.Refusal, models.ErrRefused)
	}
	if choice.FinishReason == finishReasonContentFilter {
		return "", fmt.Errorf("model %s output was content filtered: %w", c.model, models.ErrRefused)
	}
	return choice.Message.Content, nil
}
