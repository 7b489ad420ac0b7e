package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds shared by every stage. Use errors.Is against these.
var (
	ErrUpload        = errors.New("upload error")
	ErrSourceOpen    = errors.New("source open error")
	ErrImageDecode   = errors.New("image decode error")
	ErrRemoteService = errors.New("remote service error")
	ErrWrite         = errors.New("write error")
)

// Stage names reported in StageError.
const (
	StageIntake        = "intake"
	StageOpen          = "open"
	StageExtractText   = "extract-text"
	StageExtractImages = "extract-images"
	StagePreprocess    = "preprocess"
	StageTranscribe    = "transcribe"
	StageMerge         = "merge"
	StageRestructure   = "restructure"
	StageWrite         = "write"
)

// StageError ties a failure to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

// NewStageError wraps err as a failure of kind in stage.
func NewStageError(stage string, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// HTTPStatus maps an error to the status code surfaced to clients.
// Upload errors are user-correctable; everything else is a server failure.
func HTTPStatus(err error) int {
	if errors.Is(err, ErrUpload) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
