package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// PutObject uploads body under objectKey.
	PutObject(ctx context.Context, objectKey, contentType string, body []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}

// ReportKey returns the object key a reconciliation report of the given kind
// is archived under, e.g. reports/orphans/20250102T150405Z.json.
func ReportKey(kind string, at time.Time) string {
	kind = strings.Trim(strings.ToLower(kind), "/ ")
	if kind == "" {
		kind = "misc"
	}
	return fmt.Sprintf("reports/%s/%s.json", kind, at.UTC().Format("20060102T150405Z"))
}
