package s3blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// uploadConcurrency bounds parallel uploads during archival.
const uploadConcurrency = 4

// sourceSegments maps output filename prefixes to their archive folder.
var sourceSegments = []struct {
	prefix  string
	segment string
}{
	{"bond_yields_terminal", "terminal"},
	{"nsx_bonds", "nsx"},
	{"ijg_bonds", "ijg"},
	{"closing_yields", "closing"},
}

// Archiver implements domain.Archiver by copying the day's output files to
// object storage under archive/<source>/<year>/<filename>. Files at or above
// the multipart threshold (the growing calculator workbook) go through the
// upload manager.
type Archiver struct {
	writer *Writer
	logger *slog.Logger
}

// NewArchiver creates an Archiver that uploads through the given Writer.
func NewArchiver(writer *Writer, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveRun uploads the given files concurrently and returns how many
// succeeded. Uploads are independent: one failure does not stop the others,
// and all failures come back joined so the caller can log them.
func (a *Archiver) ArchiveRun(ctx context.Context, day time.Time, files []string) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		errs     []error
		uploaded int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	for _, file := range files {
		file := file
		g.Go(func() error {
			key := archiveKey(day, file)
			if err := a.uploadFile(ctx, key, file); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				a.logger.Error("archive upload failed",
					slog.String("file", file),
					slog.String("error", err.Error()),
				)
				return nil
			}

			mu.Lock()
			uploaded++
			mu.Unlock()
			a.logger.Info("file archived",
				slog.String("file", file),
				slog.String("key", key),
			)
			return nil
		})
	}

	_ = g.Wait()
	return uploaded, errors.Join(errs...)
}

// uploadFile streams one local file to the given key.
func (a *Archiver) uploadFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("s3blob: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("s3blob: stat %s: %w", path, err)
	}

	if info.Size() >= minPartSize {
		return a.writer.PutMultipart(ctx, key, f, minPartSize)
	}
	return a.writer.Put(ctx, key, f, contentTypeFor(path))
}

// archiveKey builds the object key for a file, partitioned by source and the
// run's year.
func archiveKey(day time.Time, file string) string {
	name := filepath.Base(file)

	segment := "misc"
	for _, s := range sourceSegments {
		if strings.HasPrefix(name, s.prefix) {
			segment = s.segment
			break
		}
	}

	return fmt.Sprintf("archive/%s/%s/%s", segment, day.Format("2006"), name)
}

// contentTypeFor picks the upload content type from the file extension.
func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

var _ domain.Archiver = (*Archiver)(nil)
