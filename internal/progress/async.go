package progress

import (
	"sync"
	"time"

	"s3sync/internal/syncer"
)

type eventKind int

const (
	discovered eventKind = iota
	progressed
	conflicted
	failed
	completed
)

type event struct {
	kind    eventKind
	key     string
	backup  string
	done    int64
	size    int64
	count   int
	err     error
	elapsed time.Duration
}

// Async delivers events to another reporter from a single goroutine, so the
// caller never waits on slow output. Progress events are dropped while the
// buffer is full; every other event is delivered. Close must be called to
// flush pending events.
type Async struct {
	next   syncer.Reporter
	events chan event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts delivering to next with room for buffer pending events.
func NewAsync(next syncer.Reporter, buffer int) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next:   next,
		events: make(chan event, buffer),
		done:   make(chan struct{}),
	}
	go a.deliver()
	return a
}

func (a *Async) deliver() {
	defer close(a.done)
	for e := range a.events {
		switch e.kind {
		case discovered:
			a.next.Discovered(e.count, e.size)
		case progressed:
			a.next.Progress(e.key, e.done, e.size)
		case conflicted:
			a.next.Conflict(e.key, e.backup)
		case failed:
			a.next.ObjectFailed(e.key, e.err)
		case completed:
			a.next.Completed(e.elapsed, e.count)
		}
	}
}

func (a *Async) send(e event, wait bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	if wait {
		a.events <- e
		return
	}
	select {
	case a.events <- e:
	default:
	}
}

func (a *Async) Discovered(objects int, bytes int64) {
	a.send(event{kind: discovered, count: objects, size: bytes}, true)
}

func (a *Async) Progress(key string, done, size int64) {
	a.send(event{kind: progressed, key: key, done: done, size: size}, false)
}

func (a *Async) Conflict(path, backupPath string) {
	a.send(event{kind: conflicted, key: path, backup: backupPath}, true)
}

func (a *Async) ObjectFailed(key string, err error) {
	a.send(event{kind: failed, key: key, err: err}, true)
}

func (a *Async) Completed(elapsed time.Duration, failed int) {
	a.send(event{kind: completed, elapsed: elapsed, count: failed}, true)
}

// Close stops accepting events and waits until the pending ones are delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
}
