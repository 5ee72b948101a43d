package progress

import (
	"time"

	"s3sync/internal/syncer"
)

// Multi forwards every event to each reporter in order.
type Multi []syncer.Reporter

func (m Multi) Discovered(objects int, bytes int64) {
	for _, r := range m {
		r.Discovered(objects, bytes)
	}
}

func (m Multi) Progress(key string, done, size int64) {
	for _, r := range m {
		r.Progress(key, done, size)
	}
}

func (m Multi) Conflict(path, backupPath string) {
	for _, r := range m {
		r.Conflict(path, backupPath)
	}
}

func (m Multi) ObjectFailed(key string, err error) {
	for _, r := range m {
		r.ObjectFailed(key, err)
	}
}

func (m Multi) Completed(elapsed time.Duration, failed int) {
	for _, r := range m {
		r.Completed(elapsed, failed)
	}
}
