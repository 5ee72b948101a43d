// Package syncer drives a full remote-to-local mirror run.
//
// A run lists the remote prefix once to learn the totals, then maps and
// transfers every object. Objects are processed in waves of increasing key
// depth, so an object that doubles as another key's ancestor directory is
// always written before its descendants. Within a wave a bounded pool of
// workers transfers objects independently. A failed object is recorded and
// skipped; only listing failures and an unusable local root abort a run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"s3sync/internal/localfs"
	"s3sync/internal/models"
	"s3sync/internal/pathspec"
	"s3sync/internal/s3client"
	"s3sync/internal/transfer"
)

// API is the subset of the S3 client a run needs.
type API interface {
	s3.ListObjectsV2APIClient
	transfer.API
}

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	// Concurrency is the number of objects transferred at once. 1 is fully sequential.
	Concurrency int
	Transfer    transfer.Config
	Reporter    Reporter
	Fs          afero.Fs
	PageSize    int32
}

// Coordinator runs sync jobs against one S3 client.
type Coordinator struct {
	client      API
	concurrency int
	transfer    transfer.Config
	reporter    Reporter
	fs          afero.Fs
	pageSize    int32
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(client API, opts Options) *Coordinator {
	c := &Coordinator{
		client:      client,
		concurrency: opts.Concurrency,
		transfer:    opts.Transfer,
		reporter:    opts.Reporter,
		fs:          opts.Fs,
		pageSize:    opts.PageSize,
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}
	if c.reporter == nil {
		c.reporter = NopReporter{}
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	return c
}

type task struct {
	obj     models.RemoteObject
	mapping localfs.LocalMapping
}

// Run mirrors spec into localRoot. The returned error is non-nil only for
// failures that prevent the run (ErrRootCreation, ErrListingFailure) or for
// cancellation of ctx; per-object failures are in the result.
func (c *Coordinator) Run(ctx context.Context, spec pathspec.PathSpec, localRoot string) (*models.SyncResult, error) {
	job := newJob(spec, localRoot)
	started := time.Now()

	job.setState(StateListing)
	mapper, err := localfs.NewMapper(c.fs, localRoot, spec.ListPrefix())
	if err != nil {
		job.setState(StateFailed)
		return nil, fmt.Errorf("%w: %w", ErrRootCreation, err)
	}
	job.LocalRoot = mapper.Root()
	mapper.WithConflictHandler(func(conflict localfs.Conflict) {
		job.conflict(conflict.Path, conflict.BackupPath)
		c.reporter.Conflict(conflict.Path, conflict.BackupPath)
	})

	if err := mapper.EnsureRoot(); err != nil {
		job.setState(StateFailed)
		return nil, fmt.Errorf("%w: %w", ErrRootCreation, err)
	}

	lister := s3client.NewLister(c.client).WithPageSize(c.pageSize)
	listing, err := lister.Collect(ctx, spec)
	if err != nil {
		job.setState(StateFailed)
		return nil, fmt.Errorf("%w: %w", ErrListingFailure, err)
	}

	job.setTotals(listing.TotalObjects, listing.TotalBytes)
	c.reporter.Discovered(listing.TotalObjects, listing.TotalBytes)
	slog.Debug("listing complete", "source", spec.String(), "objects", listing.TotalObjects, "bytes", listing.TotalBytes)

	if listing.TotalObjects == 0 {
		job.setState(StateDone)
		c.reporter.Completed(time.Since(started), 0)
		return job.Result(), nil
	}

	job.setState(StateTransferring)
	executor := transfer.New(c.client, mapper, spec.Container, c.transfer)
	for _, wave := range c.plan(job, mapper, listing.Objects) {
		if ctx.Err() != nil {
			break
		}
		c.runWave(ctx, job, executor, wave)
	}

	job.setState(StateReporting)
	failed := len(job.ObjectsFailed())
	c.reporter.Completed(time.Since(started), failed)

	if err := ctx.Err(); err != nil {
		job.setState(StateFailed)
		return job.Result(), fmt.Errorf("sync interrupted: %w", err)
	}
	job.setState(StateDone)
	return job.Result(), nil
}

// plan maps every object and groups them into waves by key depth. Keys that
// cannot be mapped fail immediately; keys naming the root itself are skipped
// with their size counted as done.
func (c *Coordinator) plan(job *Job, mapper *localfs.Mapper, objects []models.RemoteObject) [][]task {
	byDepth := make(map[int][]task)
	for _, obj := range objects {
		mapping, err := mapper.Map(obj.Key)
		if err != nil {
			if errors.Is(err, localfs.ErrEmptyPath) {
				if job.progressFor(obj.Size)(obj.Size) {
					c.reporter.Progress(obj.Key, obj.Size, obj.Size)
				}
				job.succeeded()
				continue
			}
			c.recordFailure(job, obj.Key, err)
			continue
		}
		byDepth[mapping.Depth] = append(byDepth[mapping.Depth], task{obj: obj, mapping: mapping})
	}

	depths := make([]int, 0, len(byDepth))
	for depth := range byDepth {
		depths = append(depths, depth)
	}
	sort.Ints(depths)

	waves := make([][]task, 0, len(depths))
	for _, depth := range depths {
		waves = append(waves, byDepth[depth])
	}
	return waves
}

func (c *Coordinator) runWave(ctx context.Context, job *Job, executor *transfer.Executor, wave []task) {
	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for _, t := range wave {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			c.transferOne(ctx, job, executor, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) transferOne(ctx context.Context, job *Job, executor *transfer.Executor, t task) {
	advance := job.progressFor(t.obj.Size)
	err := executor.Transfer(ctx, t.obj, t.mapping, func(done int64) {
		if advance(done) {
			c.reporter.Progress(t.obj.Key, min(done, t.obj.Size), t.obj.Size)
		}
	})
	if err != nil {
		c.recordFailure(job, t.obj.Key, err)
		return
	}
	job.succeeded()
}

func (c *Coordinator) recordFailure(job *Job, key string, err error) {
	job.failed(key)
	slog.Warn("object sync failed", "key", key, "error", err)
	c.reporter.ObjectFailed(key, err)
}
