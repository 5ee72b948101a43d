package progress

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	gate   chan struct{}
}

func (r *recorder) add(s string) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) Discovered(objects int, bytes int64) {
	r.add(fmt.Sprintf("discovered %d %d", objects, bytes))
}

func (r *recorder) Progress(key string, done, size int64) {
	r.add(fmt.Sprintf("progress %s %d/%d", key, done, size))
}

func (r *recorder) Conflict(path, backupPath string) {
	r.add("conflict " + path)
}

func (r *recorder) ObjectFailed(key string, err error) {
	r.add("failed " + key)
}

func (r *recorder) Completed(elapsed time.Duration, failed int) {
	r.add(fmt.Sprintf("completed %d", failed))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestConsole_NoObjects(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, 0)

	c.Discovered(0, 0)
	c.Completed(1500*time.Millisecond, 0)

	assert.Equal(t, "No objects found\nCompleted in 1.5 seconds, 0 objects failed\n", buf.String())
}

func TestConsole_Run(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, 50)

	c.Discovered(2, 2048)
	c.Progress("a.bin", 100, 1024)
	c.Progress("a.bin", 600, 1024)
	c.Progress("a.bin", 700, 1024)
	c.Progress("a.bin", 1024, 1024)
	c.Conflict("/mirror/docs", "/mirror/docs.0123abcd.bak")
	c.ObjectFailed("b.bin", errors.New("boom"))
	c.Completed(2*time.Second, 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Found 2 objects (2.0 KB)", lines[0])
	assert.Equal(t, "a.bin: 58% (600 B / 1.0 KB), total 29%", lines[1])
	assert.Equal(t, "a.bin: 100% (1.0 KB / 1.0 KB), total 50%", lines[2])
	assert.Equal(t, "Warning: conflict at /mirror/docs, file kept as /mirror/docs.0123abcd.bak", lines[3])
	assert.Equal(t, "Warning: failed to sync b.bin: boom", lines[4])
	assert.Equal(t, "Completed in 2.0 seconds, 1 objects failed", lines[5])
}

func TestConsole_IgnoresStaleProgress(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, 10)

	c.Discovered(1, 10)
	c.Progress("k", 10, 10)
	c.Progress("k", 5, 10)

	assert.Equal(t, 1, strings.Count(buf.String(), "k: "))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Discovered(3, 42)
	l.Progress("half", 1, 2)
	l.Progress("full", 2, 2)
	l.Conflict("/r/a", "/r/a.deadbeef.bak")
	l.ObjectFailed("bad", errors.New("denied"))
	l.Completed(time.Second, 1)

	out := buf.String()
	assert.Contains(t, out, "listing complete")
	assert.Contains(t, out, "objects=3")
	assert.Contains(t, out, "key=full")
	assert.NotContains(t, out, "key=half")
	assert.Contains(t, out, "level=DEBUG msg=\"conflict reported\"")
	assert.Contains(t, out, "error=denied")
	assert.NotContains(t, out, "level=WARN")
	assert.Contains(t, out, "failed=1")
}

func TestNewLogger_DefaultsToSlogDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), NewLogger(nil).log)
}

func TestAsync_DeliversInOrder(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, 64)

	a.Discovered(2, 20)
	a.Progress("x", 10, 10)
	a.Conflict("/r/x", "/r/x.bak")
	a.ObjectFailed("y", errors.New("nope"))
	a.Completed(time.Second, 1)
	a.Close()

	assert.Equal(t, []string{
		"discovered 2 20",
		"progress x 10/10",
		"conflict /r/x",
		"failed y",
		"completed 1",
	}, rec.snapshot())
}

func TestAsync_DropsProgressButNotLifecycle(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	a := NewAsync(rec, 1)

	a.Discovered(1, 100)
	for i := range 100 {
		a.Progress("k", int64(i+1), 100)
	}

	close(rec.gate)
	a.Completed(time.Second, 0)
	a.Close()

	events := rec.snapshot()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Less(t, len(events), 102)
	assert.Equal(t, "discovered 1 100", events[0])
	assert.Equal(t, "completed 0", events[len(events)-1])
}

func TestAsync_CloseIsIdempotent(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, 4)
	a.Discovered(0, 0)
	a.Close()
	a.Close()
	a.Completed(0, 0)

	assert.Equal(t, []string{"discovered 0 0"}, rec.snapshot())
}

func TestMulti(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	m := Multi{first, second}

	m.Discovered(1, 1)
	m.Progress("k", 1, 1)
	m.Conflict("p", "b")
	m.ObjectFailed("f", errors.New("x"))
	m.Completed(0, 1)

	assert.Equal(t, first.snapshot(), second.snapshot())
	assert.Len(t, first.snapshot(), 5)
}
