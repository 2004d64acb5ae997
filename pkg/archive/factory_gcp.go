//go:build gcp

package archive

import (
	"context"
	"fmt"
	"os"
)

func newGCSFromEnv(ctx context.Context) (Backend, error) {
	bucket := os.Getenv("DOCUFY_ARCHIVE_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("DOCUFY_ARCHIVE_GCS_BUCKET is required for GCS archive")
	}
	return NewGCSBackend(ctx, GCSConfig{Bucket: bucket, Prefix: os.Getenv("DOCUFY_ARCHIVE_GCS_PREFIX")})
}
