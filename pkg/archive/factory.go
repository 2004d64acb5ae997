package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BackendType selects where receipts go.
type BackendType string

const (
	BackendNone BackendType = "none"
	BackendFS   BackendType = "fs"
	BackendS3   BackendType = "s3"
	BackendGCS  BackendType = "gcs"
)

// NewFromEnv builds an Archive from the environment. It returns nil, nil
// when archiving is switched off.
//
//   - DOCUFY_ARCHIVE_TYPE: "fs" (default), "s3", "gcs" or "none"
//   - DOCUFY_DATA_DIR: base directory for fs (default "data")
//   - DOCUFY_ARCHIVE_S3_BUCKET (required), DOCUFY_ARCHIVE_S3_REGION or AWS_REGION,
//     DOCUFY_ARCHIVE_S3_ENDPOINT, DOCUFY_ARCHIVE_S3_PREFIX
//   - DOCUFY_ARCHIVE_GCS_BUCKET (required), DOCUFY_ARCHIVE_GCS_PREFIX
func NewFromEnv(ctx context.Context) (*Archive, error) {
	t := BackendType(os.Getenv("DOCUFY_ARCHIVE_TYPE"))
	if t == "" {
		t = BackendFS
	}

	var b Backend
	var err error
	switch t {
	case BackendNone:
		return nil, nil
	case BackendFS:
		dir := os.Getenv("DOCUFY_DATA_DIR")
		if dir == "" {
			dir = "data"
		}
		b, err = NewFileBackend(filepath.Join(dir, "receipts"))
	case BackendS3:
		b, err = newS3FromEnv(ctx)
	case BackendGCS:
		b, err = newGCSFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", t)
	}
	if err != nil {
		return nil, err
	}
	return New(b), nil
}

func newS3FromEnv(ctx context.Context) (Backend, error) {
	bucket := os.Getenv("DOCUFY_ARCHIVE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("DOCUFY_ARCHIVE_S3_BUCKET is required for S3 archive")
	}
	region := os.Getenv("DOCUFY_ARCHIVE_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	return NewS3Backend(ctx, S3Config{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("DOCUFY_ARCHIVE_S3_ENDPOINT"),
		Prefix:   os.Getenv("DOCUFY_ARCHIVE_S3_PREFIX"),
	})
}
