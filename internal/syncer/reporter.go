package syncer

import "time"

// Reporter receives run events in order: Discovered once, then any number of
// Progress, Conflict and ObjectFailed events, then Completed once.
// Implementations must return quickly; they are called from transfer goroutines.
type Reporter interface {
	Discovered(objects int, bytes int64)
	Progress(key string, done, size int64)
	Conflict(path, backupPath string)
	ObjectFailed(key string, err error)
	Completed(elapsed time.Duration, failed int)
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) Discovered(int, int64) {}
func (NopReporter) Progress(string, int64, int64) {}
func (NopReporter) Conflict(string, string) {}
func (NopReporter) ObjectFailed(string, error) {}
func (NopReporter) Completed(time.Duration, int) {}
