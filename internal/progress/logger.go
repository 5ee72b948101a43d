package progress

import (
	"log/slog"
	"time"
)

// Logger reports run events as structured log records.
// Per-object progress is logged at debug level once the object is complete.
// Conflicts and failed objects are already logged as warnings where they
// happen, so Logger records them at debug level only.
type Logger struct {
	log *slog.Logger
}

// NewLogger wraps log, or slog.Default() when log is nil.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

func (l *Logger) Discovered(objects int, bytes int64) {
	l.log.Info("listing complete", "objects", objects, "bytes", bytes)
}

func (l *Logger) Progress(key string, done, size int64) {
	if done >= size {
		l.log.Debug("object synced", "key", key, "bytes", size)
	}
}

func (l *Logger) Conflict(path, backupPath string) {
	l.log.Debug("conflict reported", "path", path, "backup", backupPath)
}

func (l *Logger) ObjectFailed(key string, err error) {
	l.log.Debug("failure reported", "key", key, "error", err)
}

func (l *Logger) Completed(elapsed time.Duration, failed int) {
	l.log.Info("sync completed", "elapsed", elapsed, "failed", failed)
}
