package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ScratchScope is the set of directories owned by a single request. Nothing
// outside the scope is written while a pipeline runs, so concurrent requests
// never share extracted images or outputs.
type ScratchScope struct {
	ID        string
	Root      string
	UploadDir string
	ImagesDir string
	ResultDir string
}

// NewScratchScope creates the directories of a fresh scope under root.
func NewScratchScope(root string) (*ScratchScope, error) {
	scope := scopeFor(root, uuid.NewString())
	for _, dir := range []string{scope.UploadDir, scope.ImagesDir, scope.ResultDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
		}
	}
	return scope, nil
}

// OpenScratchScope returns the scope of an earlier request. The id must be
// a UUID, so it can never point outside root.
func OpenScratchScope(root, id string) (*ScratchScope, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", id, err)
	}
	return scopeFor(root, parsed.String()), nil
}

func scopeFor(root, id string) *ScratchScope {
	dir := filepath.Join(root, id)
	return &ScratchScope{
		ID:        id,
		Root:      dir,
		UploadDir: filepath.Join(dir, "uploads"),
		ImagesDir: filepath.Join(dir, "images"),
		ResultDir: filepath.Join(dir, "results"),
	}
}

// UploadPath is where an uploaded file called filename is stored.
func (s *ScratchScope) UploadPath(filename string) string {
	return filepath.Join(s.UploadDir, SafeFilename(filename, "upload"))
}

// ResultPath is where an output called name is written.
func (s *ScratchScope) ResultPath(name string) string {
	return filepath.Join(s.ResultDir, SafeFilename(name, "result"))
}

// RemoveWorkFiles deletes the uploads and extracted images, keeping results
// available for download.
func (s *ScratchScope) RemoveWorkFiles() error {
	if err := os.RemoveAll(s.UploadDir); err != nil {
		return err
	}
	return os.RemoveAll(s.ImagesDir)
}

// Remove deletes the whole scope.
func (s *ScratchScope) Remove() error {
	return os.RemoveAll(s.Root)
}

// SafeFilename reduces a client supplied name to its base name, so it cannot
// climb out of the directory it is joined to.
func SafeFilename(name, fallback string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return fallback
	}
	return base
}
