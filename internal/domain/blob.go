package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver copies a run's output files to cold storage.
type Archiver interface {
	ArchiveRun(ctx context.Context, day time.Time, files []string) (int, error)
}
