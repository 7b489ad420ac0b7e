package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentconverter/internal/docx"
	"github.com/Lllllllleong/documentconverter/internal/models"
)

var errQuota = errors.New("quota exceeded")

// fakeGenerator answers image calls with "transcript <n>" (1-based call
// order) unless imageFn is set, and text calls with textResponse. With
// block set, image calls wait for ctx to end.
type fakeGenerator struct {
	mu           sync.Mutex
	images       []models.ImagePart
	imagePrompts []string
	textPrompts  []string
	texts        []string

	block        bool
	imageFn      func(call int, image models.ImagePart) (string, error)
	textResponse string
	textErr      error
}

func (g *fakeGenerator) GenerateFromImage(ctx context.Context, prompt string, image models.ImagePart) (string, error) {
	g.mu.Lock()
	g.images = append(g.images, image)
	g.imagePrompts = append(g.imagePrompts, prompt)
	call := len(g.images)
	g.mu.Unlock()

	if g.block {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.imageFn != nil {
		return g.imageFn(call, image)
	}
	return fmt.Sprintf("transcript %d", call), nil
}

func (g *fakeGenerator) GenerateFromText(_ context.Context, prompt, text string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.textPrompts = append(g.textPrompts, prompt)
	g.texts = append(g.texts, text)
	return g.textResponse, g.textErr
}

func (g *fakeGenerator) imageCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.images)
}

// fakeRecorder keeps every status a job went through.
type fakeRecorder struct {
	mu       sync.Mutex
	jobs     map[string]models.Job
	statuses map[string][]string
	fields   map[string]map[string]interface{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		jobs:     map[string]models.Job{},
		statuses: map[string][]string{},
		fields:   map[string]map[string]interface{}{},
	}
}

func (r *fakeRecorder) Create(_ context.Context, jobID string, job models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[jobID] = job
	r.statuses[jobID] = append(r.statuses[jobID], job.Status)
	r.fields[jobID] = map[string]interface{}{}
	return nil
}

func (r *fakeRecorder) Update(_ context.Context, jobID, status string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[jobID] = append(r.statuses[jobID], status)
	for k, v := range fields {
		r.fields[jobID][k] = v
	}
	return nil
}

func (r *fakeRecorder) history(jobID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses[jobID]...)
}

type fakeSink struct {
	objects []string
	err     error
}

func (s *fakeSink) Publish(_ context.Context, localPath, objectName string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	s.objects = append(s.objects, objectName)
	return "gs://results/" + objectName, nil
}

func newScope(t *testing.T) *ScratchScope {
	t.Helper()
	scope, err := NewScratchScope(t.TempDir())
	require.NoError(t, err)
	return scope
}

// docxText returns the text of the document at path.
func docxText(t *testing.T, path string) string {
	t.Helper()
	text, err := docx.ReadText(path)
	require.NoError(t, err)
	return text
}

// writeScan writes a PNG with dark text-like pixels on a light background.
func writeScan(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			c := color.RGBA{R: 240, G: 240, B: 240, A: 255}
			if x%3 == 0 {
				c = color.RGBA{R: 20, G: 20, B: 20, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// openHandlesTo lists this process's file descriptors that refer to path.
// It returns nil where /proc is unavailable.
func openHandlesTo(t *testing.T, path string) []string {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd on this platform")
	}
	want, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	var open []string
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name()))
		if err != nil {
			continue
		}
		if strings.TrimSuffix(target, " (deleted)") == want {
			open = append(open, e.Name())
		}
	}
	return open
}
