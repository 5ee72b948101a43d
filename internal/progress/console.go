// Package progress renders sync run events for people and logs.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"s3sync/internal/syncer"
	"s3sync/pkg/utils"
)

// DefaultStep is the percentage between two progress lines for the same object.
const DefaultStep = 10

var (
	_ syncer.Reporter = (*Console)(nil)
	_ syncer.Reporter = (*Logger)(nil)
	_ syncer.Reporter = (*Async)(nil)
	_ syncer.Reporter = Multi(nil)
)

// Console writes human-readable progress lines.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	step int64
	last map[string]int64

	totalBytes int64
	doneBytes  int64
}

// NewConsole creates a Console printing a line per object every step percent.
// A step outside 1..100 selects DefaultStep.
func NewConsole(out io.Writer, step int) *Console {
	if step <= 0 || step > 100 {
		step = DefaultStep
	}
	return &Console{
		out:  out,
		step: int64(step),
		last: make(map[string]int64),
	}
}

func (c *Console) Discovered(objects int, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalBytes = bytes
	if objects == 0 {
		fmt.Fprintln(c.out, "No objects found")
		return
	}
	fmt.Fprintf(c.out, "Found %d objects (%s)\n", objects, utils.FormatBytes(bytes))
}

func (c *Console) Progress(key string, done, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.last[key]
	if done <= prev {
		return
	}
	c.doneBytes += done - prev
	c.last[key] = done

	if done < size && percent(done, size)/c.step == percent(prev, size)/c.step {
		return
	}

	fmt.Fprintf(c.out, "%s: %d%% (%s / %s), total %d%%\n",
		key, percent(done, size), utils.FormatBytes(done), utils.FormatBytes(size),
		percent(c.doneBytes, c.totalBytes))
}

func (c *Console) Conflict(path, backupPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "Warning: conflict at %s, file kept as %s\n", path, backupPath)
}

func (c *Console) ObjectFailed(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "Warning: failed to sync %s: %v\n", key, err)
}

func (c *Console) Completed(elapsed time.Duration, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "Completed in %.1f seconds, %d objects failed\n", elapsed.Seconds(), failed)
}

func percent(done, total int64) int64 {
	if total <= 0 {
		return 100
	}
	return min(done*100/total, 100)
}
