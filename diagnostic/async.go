package diagnostic

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dormoron/gimme/internal/errs"
	"go.uber.org/atomic"
)

// Async decouples the request path from a slow Sink. Record enqueues onto a
// bounded buffer drained by a single worker goroutine. When the buffer is full
// Record waits at most the enqueue timeout before dropping the diagnostic and
// reporting it through the drop handler.
type Async struct {
	next     Sink
	queue    chan Diagnostic
	wait     time.Duration
	dropFunc func(d Diagnostic, err error)

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	delivered *atomic.Int64
	dropped   *atomic.Int64
}

type AsyncOption func(a *Async)

// AsyncWithBuffer sets the queue capacity. Default 1024.
func AsyncWithBuffer(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.queue = make(chan Diagnostic, n)
		}
	}
}

// AsyncWithEnqueueTimeout bounds how long Record may wait for buffer space.
// Zero means never wait. Default 50ms.
func AsyncWithEnqueueTimeout(d time.Duration) AsyncOption {
	return func(a *Async) {
		a.wait = d
	}
}

// AsyncWithDropHandler replaces the default drop handler, which writes one
// line through the standard library logger.
func AsyncWithDropHandler(fn func(d Diagnostic, err error)) AsyncOption {
	return func(a *Async) {
		if fn != nil {
			a.dropFunc = fn
		}
	}
}

func NewAsync(next Sink, opts ...AsyncOption) *Async {
	a := &Async{
		next:      next,
		queue:     make(chan Diagnostic, 1024),
		wait:      50 * time.Millisecond,
		done:      make(chan struct{}),
		delivered: atomic.NewInt64(0),
		dropped:   atomic.NewInt64(0),
		dropFunc: func(d Diagnostic, err error) {
			log.Printf("diagnostic: dropped %s kind=%s origin=%s: %v", d.ID, d.Kind, d.Origin, err)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run()
	return a
}

func (a *Async) Record(d Diagnostic) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(d, errs.ErrSinkClosed)
		return
	}

	select {
	case a.queue <- d:
		return
	default:
	}
	if a.wait <= 0 {
		a.drop(d, errs.ErrSinkFull)
		return
	}

	timer := time.NewTimer(a.wait)
	defer timer.Stop()
	select {
	case a.queue <- d:
	case <-timer.C:
		a.drop(d, errs.ErrSinkFull)
	}
}

func (a *Async) drop(d Diagnostic, err error) {
	a.dropped.Inc()
	a.dropFunc(d, err)
}

func (a *Async) run() {
	defer close(a.done)
	for d := range a.queue {
		safeRecord(a.next, d)
		a.delivered.Inc()
	}
}

// Close stops accepting diagnostics and waits until everything already queued
// has been delivered, or ctx is done.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delivered reports how many diagnostics reached the wrapped sink.
func (a *Async) Delivered() int64 { return a.delivered.Load() }

// Dropped reports how many diagnostics were discarded.
func (a *Async) Dropped() int64 { return a.dropped.Load() }
