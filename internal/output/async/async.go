package async

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/output"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 1024.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithLogger sets the logger used for inner write failures and drops.
func WithLogger(l *zap.Logger) Option {
	return func(a *Async) { a.logger = l }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately (dropping the record) when
// the buffer is full, instead of blocking the request that produced it.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// Async decouples prediction handling from audit I/O via a buffered channel.
// A background goroutine drains records to the wrapped output; errors from
// the inner output go to errFunc rather than back to the caller.
type Async struct {
	inner      output.Output
	ch         chan output.Record
	done       chan struct{}
	logger     *zap.Logger
	errFunc    func(error)
	bufSize    int
	dropOnFull bool
	dropped    atomic.Int64
	closeOnce  sync.Once
	mu         sync.RWMutex // guards closed against concurrent Write
	closed     bool
}

// New wraps inner. The drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.errFunc == nil {
		a.errFunc = func(err error) { a.logger.Warn("async output write error", zap.Error(err)) }
	}
	a.ch = make(chan output.Record, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write queues rec. By default it blocks while the buffer is full; with
// WithDropOnFull the record is counted as dropped instead. Writes after
// Close are dropped.
func (a *Async) Write(ctx context.Context, rec output.Record) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return nil
	}

	if a.dropOnFull {
		select {
		case a.ch <- rec:
		default:
			a.dropped.Add(1)
			a.logger.Warn("async output buffer full, dropping record",
				zap.String("model", rec.Model), zap.String("request_id", rec.RequestID))
		}
		return nil
	}
	select {
	case a.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of records discarded so far.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting records, waits for the drain goroutine (bounded by a
// timeout), then closes the inner output.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.ch)
		a.mu.Unlock()

		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			a.logger.Warn("async output drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for rec := range a.ch {
		if err := a.inner.Write(context.Background(), rec); err != nil {
			a.errFunc(err)
		}
	}
}
