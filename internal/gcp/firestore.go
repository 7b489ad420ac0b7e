package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/documentconverter/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreRecorder stores one document per job, keyed by job ID.
type FirestoreRecorder struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRecorder records jobs into collection.
func NewFirestoreRecorder(client *firestore.Client, collection string) *FirestoreRecorder {
	return &FirestoreRecorder{client: client, collection: collection}
}

// Create writes the initial job document.
func (r *FirestoreRecorder) Create(ctx context.Context, jobID string, job models.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.UpdatedAt = job.CreatedAt
	if _, err := r.client.Collection(r.collection).Doc(jobID).Set(ctx, job); err != nil {
		return fmt.Errorf("failed to create job document: %w", err)
	}
	return nil
}

// Update moves the job to status and sets any extra fields, keyed by their
// Firestore field names (e.g. "errorDetails").
func (r *FirestoreRecorder) Update(ctx context.Context, jobID, status string, fields map[string]interface{}) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	if _, err := r.client.Collection(r.collection).Doc(jobID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update job %s to %s: %w", jobID, status, err)
	}
	return nil
}

func (r *FirestoreRecorder) Close() error {
	return r.client.Close()
}
