// Package storage persists source and transformed XML documents.
package storage

import (
	"context"
	"fmt"
)

// DocumentStore stores and retrieves XML documents by reference. A reference
// is either a blob path relative to the configured container or a full blob
// URL returned by a previous Put.
type DocumentStore interface {
	Put(ctx context.Context, path string, data []byte, metadata map[string]string) (string, error)
	Get(ctx context.Context, reference string) ([]byte, error)
}

// ResultPath returns the canonical blob path for a job's transformed
// document.
func ResultPath(jobID string) string {
	return fmt.Sprintf("results/%s.xml", jobID)
}
