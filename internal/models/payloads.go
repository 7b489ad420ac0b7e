package models

// These structs define the JSON payloads returned by the HTTP intake and the CLI.

// ConvertResponse is the outcome of a successful pipeline run.
type ConvertResponse struct {
	Status      string `json:"status"`
	JobID       string `json:"jobId"`
	Pipeline    string `json:"pipeline"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	ResultURI   string `json:"resultUri,omitempty"`
}

// ErrorResponse is written when a request fails.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// GCSEvent is the payload of a GCS object finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}
