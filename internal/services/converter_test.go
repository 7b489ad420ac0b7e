package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

func TestPipelineFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "report.pdf", want: models.PipelinePDF},
		{filename: "REPORT.PDF", want: models.PipelinePDF},
		{filename: "scan.jpeg", want: models.PipelineImage},
		{filename: "scan.tiff", want: models.PipelineImage},
		{filename: "uploads/2024/photo.png", want: models.PipelineImage},
	}
	for _, tt := range tests {
		got, err := PipelineFor(tt.filename)
		require.NoError(t, err, tt.filename)
		assert.Equal(t, tt.want, got, tt.filename)
	}

	_, err := PipelineFor("notes.txt")
	assert.ErrorIs(t, err, models.ErrUpload)
}

func TestSaveUpload(t *testing.T) {
	scope := newScope(t)

	path, err := SaveUpload(scope, "../../sample.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, scope.UploadPath("sample.pdf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSaveUploadReadFailure(t *testing.T) {
	_, err := SaveUpload(newScope(t), "sample.pdf", failingReader{})
	assert.ErrorIs(t, err, models.ErrUpload)
}

func TestNewPipelinesUseConfiguredPrompts(t *testing.T) {
	config := &Config{
		TranscribePrompt:      "T",
		ScanPrompt:            "S",
		RestructurePrompt:     "R",
		ImageDocStyle:         "Normal",
		ImageDocFont:          "Arial",
		TranscribeConcurrency: 1,
	}
	gen := &fakeGenerator{textResponse: "out"}
	pdfPipeline, imagePipeline := NewPipelines(config, gen, nil, nil)

	scope := newScope(t)
	source := scope.UploadPath("scan.png")
	writeScan(t, source)
	_, err := imagePipeline.Run(context.Background(), Request{Scope: scope, SourcePath: source})
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, gen.imagePrompts)

	assert.Equal(t, "T", pdfPipeline.transcriber.prompt)
	assert.Equal(t, "R", pdfPipeline.restructurer.prompt)
}

func TestProcessGCSEventRequiresResultsBucket(t *testing.T) {
	c := &Converter{Config: &Config{}}
	_, err := c.ProcessGCSEvent(context.Background(), models.GCSEvent{Bucket: "uploads", Name: "a.pdf"})
	assert.Error(t, err)
}

func TestProcessGCSEventDownloadFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		badUpload bool
	}{
		{name: "missing object", err: fmt.Errorf("reader: %w", storage.ErrObjectNotExist), badUpload: true},
		{name: "service unavailable", err: &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "backend error"}},
		{name: "network failure", err: errors.New("connection reset by peer")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			pipeline := &countingPipeline{}
			c := &Converter{
				Config: &Config{ResultsBucket: "results", ScratchRoot: root},
				PDF:    pipeline,
				fetch: func(context.Context, string, string, string) error {
					return tt.err
				},
			}

			_, err := c.ProcessGCSEvent(context.Background(), models.GCSEvent{Bucket: "uploads", Name: "a.pdf"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.badUpload, errors.Is(err, models.ErrUpload))
			assert.Zero(t, pipeline.calls)

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestProcessGCSEventRunsPipeline(t *testing.T) {
	pipeline := &countingPipeline{}
	c := &Converter{
		Config: &Config{ResultsBucket: "results", ScratchRoot: t.TempDir()},
		Image:  pipeline,
		fetch: func(_ context.Context, bucket, object, destPath string) error {
			assert.Equal(t, "uploads", bucket)
			assert.Equal(t, "scans/page.png", object)
			return os.WriteFile(destPath, []byte("png"), 0o644)
		},
	}

	result, err := c.ProcessGCSEvent(context.Background(), models.GCSEvent{Bucket: "uploads", Name: "scans/page.png"})
	require.NoError(t, err)
	assert.Equal(t, 1, pipeline.calls)
	assert.Equal(t, "scans/page.png", pipeline.last.OriginalFilename)
	assert.Equal(t, pipeline.last.Scope.ID, result.JobID)
}

type countingPipeline struct {
	calls int
	last  Request
}

func (p *countingPipeline) Run(_ context.Context, req Request) (*Result, error) {
	p.calls++
	p.last = req
	if _, err := os.Stat(req.SourcePath); err != nil {
		return nil, err
	}
	return &Result{JobID: req.Scope.ID}, nil
}
