package models

import "time"

// Job statuses, in the order a successful run walks through them.
const (
	StatusReceived     = "RECEIVED"
	StatusSaved        = "SAVED"
	StatusExtracted    = "EXTRACTED"
	StatusTranscribed  = "TRANSCRIBED"
	StatusMerged       = "MERGED"
	StatusRestructured = "RESTRUCTURED"
	StatusWritten      = "WRITTEN"
	StatusDone         = "DONE"
	StatusFailed       = "FAILED"
)

// Pipeline kinds.
const (
	PipelinePDF   = "pdf"
	PipelineImage = "image"
)

// Job represents a single conversion request as stored in Firestore.
// It tracks the overall status and metadata of the uploaded file.
type Job struct {
	FileHash         string    `firestore:"fileHash,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	Pipeline         string    `firestore:"pipeline,omitempty"`
	Status           string    `firestore:"status,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty"`
	ImageCount       int       `firestore:"imageCount,omitempty"`
	OutputPath       string    `firestore:"outputPath,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt        time.Time `firestore:"updatedAt,omitempty"`
}

// IsTerminal reports whether no further transitions can follow status.
func IsTerminal(status string) bool {
	return status == StatusDone || status == StatusFailed
}
