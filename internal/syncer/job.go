package syncer

import (
	"errors"
	"sync"
	"time"

	"s3sync/internal/models"
	"s3sync/internal/pathspec"
	"s3sync/pkg/utils"
)

var (
	// ErrListingFailure means the remote store could not be listed.
	ErrListingFailure = errors.New("listing failed")
	// ErrRootCreation means the local sync root could not be created.
	ErrRootCreation = errors.New("cannot create local root")
)

// State is a stage of a sync run.
type State int

const (
	StateIdle State = iota
	StateListing
	StateTransferring
	StateReporting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListing:
		return "listing"
	case StateTransferring:
		return "transferring"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is the aggregate state of one run. All mutators are safe for concurrent use.
type Job struct {
	Spec      pathspec.PathSpec
	LocalRoot string

	mu                 sync.Mutex
	state              State
	startedAt          time.Time
	totalObjects       int
	totalBytes         int64
	bytesTransferred   int64
	objectsTransferred int
	objectsFailed      []string
	conflicts          []models.ConflictRecord
}

func newJob(spec pathspec.PathSpec, localRoot string) *Job {
	return &Job{
		Spec:      spec,
		LocalRoot: localRoot,
		startedAt: time.Now(),
	}
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

// State returns the current stage.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setTotals(objects int, bytes int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.totalObjects = objects
	j.totalBytes = bytes
}

// progressFor returns a callback turning one object's cumulative byte count into
// increments of BytesTransferred. Regressions and overshoot are ignored.
func (j *Job) progressFor(size int64) func(done int64) bool {
	var last int64
	return func(done int64) bool {
		done = min(done, size)
		j.mu.Lock()
		defer j.mu.Unlock()
		if done <= last {
			return false
		}
		j.bytesTransferred += done - last
		last = done
		return true
	}
}

func (j *Job) succeeded() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.objectsTransferred++
}

func (j *Job) failed(key string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.objectsFailed = append(j.objectsFailed, key)
}

func (j *Job) conflict(path, backup string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.conflicts = append(j.conflicts, models.ConflictRecord{Path: path, BackupPath: backup})
}

// BytesTransferred returns the run-wide byte counter.
func (j *Job) BytesTransferred() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.bytesTransferred
}

// ObjectsFailed returns a copy of the failed keys in failure order.
func (j *Job) ObjectsFailed() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.objectsFailed...)
}

// Result snapshots the job as a serialisable summary.
func (j *Job) Result() *models.SyncResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	elapsed := time.Since(j.startedAt)
	failed := append([]string{}, j.objectsFailed...)
	return &models.SyncResult{
		BucketName:            j.Spec.Container,
		Prefix:                j.Spec.Prefix,
		LocalPath:             j.LocalRoot,
		TotalObjects:          j.totalObjects,
		TotalSizeBytes:        j.totalBytes,
		TotalSizeHuman:        utils.FormatBytes(j.totalBytes),
		BytesTransferred:      j.bytesTransferred,
		ObjectsTransferred:    j.objectsTransferred,
		ObjectsFailed:         failed,
		Conflicts:             append([]models.ConflictRecord(nil), j.conflicts...),
		NothingToSync:         j.totalObjects == 0,
		OperationTime:         utils.FormatTime(j.startedAt),
		SyncDuration:          elapsed.String(),
		SyncDurationInSeconds: elapsed.Seconds(),
	}
}
