package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/httpclient"
	"github.com/crimson-sun/sentiment/internal/output"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
)

// Option configures a webhook Output.
type Option func(*Output)

// WithToken sends the token as a Bearer Authorization header.
func WithToken(token string) Option {
	return func(o *Output) { o.token = token }
}

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.clientOpts = append(o.clientOpts, httpclient.WithHeaders(h)) }
}

// WithBatchSize sets the number of records accumulated before a flush. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the per-attempt HTTP timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.clientOpts = append(o.clientOpts, httpclient.WithTimeout(d)) }
}

// WithBackoff sets the base retry delay. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.clientOpts = append(o.clientOpts, httpclient.WithBackoff(d)) }
}

// WithIncludeText keeps the submitted text in each record.
func WithIncludeText(include bool) Option {
	return func(o *Output) { o.includeText = include }
}

// WithLogger sets the logger used by the default error callback.
func WithLogger(l *zap.Logger) Option {
	return func(o *Output) { o.logger = l }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output POSTs batched prediction records to an HTTP endpoint as a JSON
// array. Records are flushed when batchSize is reached or flushInterval
// elapses, whichever comes first.
type Output struct {
	client        *httpclient.Client
	clientOpts    []httpclient.Option
	url           string
	token         string
	batchSize     int
	flushInterval time.Duration
	includeText   bool
	logger        *zap.Logger
	errFunc       func(error)

	mu      sync.Mutex
	pending []output.Record
	timer   *time.Timer
}

// New creates a webhook output targeting url.
func New(url string, opts ...Option) *Output {
	o := &Output{
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        zap.NewNop(),
		clientOpts:    []httpclient.Option{httpclient.WithTimeout(defaultTimeout)},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.errFunc == nil {
		o.errFunc = func(err error) { o.logger.Warn("webhook flush error", zap.Error(err)) }
	}
	o.client = httpclient.New(url, o.token, append(o.clientOpts, httpclient.WithLogger(o.logger))...)
	return o
}

// Write appends rec to the batch, flushing synchronously once the batch is
// full. The first record of a batch arms the flush timer.
func (o *Output) Write(ctx context.Context, rec output.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, output.FormatRecord(rec, o.includeText))

	if len(o.pending) >= o.batchSize {
		return o.flushLocked(ctx)
	}
	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(context.Background()); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining records and stops the timer.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushLocked(context.Background())
}

// flushLocked sends the pending batch. Caller must hold o.mu.
func (o *Output) flushLocked(ctx context.Context) error {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if len(o.pending) == 0 {
		return nil
	}

	batch := o.pending
	o.pending = nil
	if err := o.client.PostJSON(ctx, "", batch, nil); err != nil {
		return errors.Wrapf(err, "webhook: post %d records", len(batch))
	}
	return nil
}
