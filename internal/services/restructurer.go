package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// ErrEmptyResponse is returned when the model answered with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Restructurer asks the generative model to rebuild merged text into a
// coherent document.
type Restructurer struct {
	generator Generator
	prompt    string
	timeout   time.Duration
}

// NewRestructurer returns a Restructurer sending prompt with every request.
func NewRestructurer(generator Generator, prompt string, timeout time.Duration) *Restructurer {
	return &Restructurer{generator: generator, prompt: prompt, timeout: timeout}
}

// Restructure returns the model's rewrite of merged, trimmed and with a
// wrapping code fence removed. There is no fallback to the input: empty or
// refused responses are errors.
func (r *Restructurer) Restructure(ctx context.Context, merged string) (string, error) {
	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	response, err := r.generator.GenerateFromText(callCtx, r.prompt, merged)
	if err != nil {
		slog.Error("Call to generative model for restructuring failed", "error", err)
		return "", models.NewStageError(models.StageRestructure, models.ErrRemoteService, err)
	}

	text := stripCodeFence(strings.TrimSpace(response))
	if text == "" {
		return "", models.NewStageError(models.StageRestructure, models.ErrRemoteService, ErrEmptyResponse)
	}
	return text, nil
}

var fenceOpenings = []string{"```markdown", "```text", "```"}

// stripCodeFence removes a code fence that wraps the whole response. Fences
// inside the text are left alone.
func stripCodeFence(text string) string {
	if !strings.HasSuffix(text, "```") {
		return text
	}
	for _, opening := range fenceOpenings {
		if strings.HasPrefix(text, opening+"\n") {
			inner := strings.TrimSuffix(strings.TrimPrefix(text, opening), "```")
			return strings.TrimSpace(inner)
		}
	}
	return text
}
