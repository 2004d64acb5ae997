//go:build !gcp

package archive

import (
	"context"
	"fmt"
)

func newGCSFromEnv(context.Context) (Backend, error) {
	return nil, fmt.Errorf("GCS archive is not enabled in this build (use -tags gcp)")
}
