// Package transfer downloads single objects to their mapped local paths.
//
// Each object is written to a hidden temporary file next to its destination and
// renamed into place only once the download completes, so a failed transfer
// leaves no partial file at the destination path.
package transfer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"s3sync/internal/localfs"
	"s3sync/internal/models"
)

const (
	partialExt = ".partial"
	filePerm   = 0o644
)

// ProgressFunc receives the bytes written so far for one object. It may be
// called from several goroutines and never reports more than the object size.
type ProgressFunc func(done int64)

// Config tunes ranged downloads. Zero values use the SDK defaults.
type Config struct {
	PartSize    int64
	Concurrency int
}

// API is the subset of the S3 client needed to fetch objects.
type API interface {
	manager.DownloadAPIClient
	s3.HeadObjectAPIClient
}

// Executor downloads objects from one bucket.
type Executor struct {
	fs         afero.Fs
	mapper     *localfs.Mapper
	client     API
	downloader *manager.Downloader
	bucket     string
}

// New creates an Executor writing through mapper's filesystem.
func New(client API, mapper *localfs.Mapper, bucket string, cfg Config) *Executor {
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		if cfg.PartSize > 0 {
			d.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			d.Concurrency = cfg.Concurrency
		}
	})

	return &Executor{
		fs:         mapper.Fs(),
		mapper:     mapper,
		client:     client,
		downloader: downloader,
		bucket:     bucket,
	}
}

// Transfer downloads obj to mapping.LocalPath. Directory markers only create
// the directory and count their declared size as done. Empty objects are
// checked with HEAD instead of a ranged GET. Any returned error is an *Error.
func (e *Executor) Transfer(ctx context.Context, obj models.RemoteObject, mapping localfs.LocalMapping, progress ProgressFunc) error {
	if progress == nil {
		progress = func(int64) {}
	}

	if mapping.IsDir {
		if _, err := e.mapper.EnsureDir(mapping); err != nil {
			return newError("mkdir", e.bucket, obj.Key, err)
		}
		progress(obj.Size)
		return nil
	}

	mapping, err := e.mapper.EnsureParent(mapping)
	if err != nil {
		return newError("prepare", e.bucket, obj.Key, err)
	}

	tmpPath := partialName(mapping.LocalPath)
	file, err := e.fs.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return newError("open", e.bucket, obj.Key, err)
	}

	writer := &progressWriterAt{w: file, limit: obj.Size, report: progress}
	if obj.Size > 0 {
		_, err = e.downloader.Download(ctx, writer, &s3.GetObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(obj.Key),
		})
	} else {
		_, err = e.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(obj.Key),
		})
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		e.discard(tmpPath)
		return newError("download", e.bucket, obj.Key, classify(err))
	}

	if err := e.fs.Rename(tmpPath, mapping.LocalPath); err != nil {
		e.discard(tmpPath)
		return newError("commit", e.bucket, obj.Key, err)
	}
	progress(writer.written())
	return nil
}

func (e *Executor) discard(path string) {
	if err := e.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove partial file", "path", path, "error", err)
	}
}

func partialName(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()[:8]+partialExt)
}

// progressWriterAt counts bytes written by concurrent part downloads.
type progressWriterAt struct {
	w      io.WriterAt
	limit  int64
	report ProgressFunc

	mu    sync.Mutex
	total int64
}

func (p *progressWriterAt) WriteAt(b []byte, off int64) (int, error) {
	n, err := p.w.WriteAt(b, off)
	if n > 0 {
		p.mu.Lock()
		p.total += int64(n)
		done := min(p.total, p.limit)
		p.mu.Unlock()
		p.report(done)
	}
	return n, err
}

func (p *progressWriterAt) written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return min(p.total, p.limit)
}
