package services

import (
	"context"
	"time"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// Generator is a remote generative model. Implementations return the raw
// response text; callers trim and validate it. A provider that declines to
// answer reports models.ErrRefused; the text itself is never inspected for
// refusals since documents may contain any wording.
type Generator interface {
	GenerateFromImage(ctx context.Context, prompt string, image models.ImagePart) (string, error)
	GenerateFromText(ctx context.Context, prompt, text string) (string, error)
}

// withTimeout bounds a remote call. A zero timeout leaves ctx untouched.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
