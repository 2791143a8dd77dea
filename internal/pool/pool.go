// Package pool serves predictions from named model artifacts through a fixed
// set of predictors. A predictor is held by exactly one call at a time and
// is returned to the pool before the call completes.
package pool

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/crimson-sun/sentiment/internal/engine"
	"github.com/crimson-sun/sentiment/internal/engine/featurizer"
	"github.com/crimson-sun/sentiment/internal/model"
)

var (
	// ErrModelNotFound is returned for a name that was never registered.
	ErrModelNotFound = errors.New("pool: model not found")
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("pool: closed")
)

// Option configures a Pool.
type Option func(*Pool)

// WithSize sets the number of predictors. Values <= 0 mean GOMAXPROCS.
func WithSize(n int) Option {
	return func(p *Pool) { p.size = n }
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithWatch enables reloading an artifact when its file changes on disk.
// Watch must be running for changes to be picked up.
func WithWatch(enabled bool) Option {
	return func(p *Pool) { p.watch = enabled }
}

// WithReloadHook registers f to be called after every reload attempt with
// the model name and the reload error, if any.
func WithReloadHook(f func(name string, err error)) Option {
	return func(p *Pool) { p.onReload = f }
}

// predictor is the exclusive-use unit of the pool: it owns the scratch
// space used to featurize one text.
type predictor struct {
	id  int
	buf *featurizer.Buffer
}

type entry struct {
	name  string
	path  string
	model atomic.Pointer[engine.Model]
}

// Pool holds loaded models and the predictors that run them.
type Pool struct {
	size     int
	logger   *zap.Logger
	watch    bool
	onReload func(string, error)

	sem  *semaphore.Weighted
	free chan *predictor

	mu      sync.RWMutex
	entries map[string]*entry
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates an empty pool. Models are added with Register.
func New(opts ...Option) (*Pool, error) {
	p := &Pool{
		logger:  zap.NewNop(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.size <= 0 {
		p.size = runtime.GOMAXPROCS(0)
	}

	p.sem = semaphore.NewWeighted(int64(p.size))
	p.free = make(chan *predictor, p.size)
	for i := 0; i < p.size; i++ {
		p.free <- &predictor{id: i, buf: featurizer.NewBuffer()}
	}

	if p.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, errors.Wrap(err, "pool: create watcher")
		}
		p.watcher = w
	}
	return p, nil
}

// Size returns the number of predictors.
func (p *Pool) Size() int {
	return p.size
}

// Register loads the artifact at path under name. Registering an existing
// name replaces its artifact path and model.
func (p *Pool) Register(ctx context.Context, name, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = filepath.Clean(path)
	m, err := engine.LoadFile(path)
	if err != nil {
		return errors.Wrapf(err, "pool: register %s", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.watcher != nil {
		if err := p.watcher.Add(filepath.Dir(path)); err != nil {
			return errors.Wrapf(err, "pool: watch %s", path)
		}
	}
	e := &entry{name: name, path: path}
	e.model.Store(m)
	p.entries[name] = e

	p.logger.Info("model registered",
		zap.String("model", name),
		zap.String("path", path),
		zap.Int("features", m.Dim()),
		zap.Int("predictors", p.size),
	)
	return nil
}

// Ready reports whether at least one model is registered.
func (p *Pool) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && len(p.entries) > 0
}

// Models returns the registered model names in sorted order.
func (p *Pool) Models() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Pool) lookup(name string) (*entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	e, ok := p.entries[name]
	if !ok {
		return nil, errors.Wrapf(ErrModelNotFound, "%q", name)
	}
	return e, nil
}

// acquire blocks until a predictor is free or ctx is done.
func (p *Pool) acquire(ctx context.Context) (*predictor, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return <-p.free, nil
}

func (p *Pool) release(pr *predictor) {
	p.free <- pr
	p.sem.Release(1)
}

// Predict classifies one input with the named model.
func (p *Pool) Predict(ctx context.Context, name string, in model.Input) (model.Prediction, error) {
	e, err := p.lookup(name)
	if err != nil {
		return model.Prediction{}, err
	}
	pr, err := p.acquire(ctx)
	if err != nil {
		return model.Prediction{}, err
	}
	defer p.release(pr)

	return e.model.Load().PredictBuf(in, pr.buf), nil
}

// PredictBatch classifies inputs in order while holding a single predictor.
// All inputs are scored by the same model even if a reload lands mid-batch.
func (p *Pool) PredictBatch(ctx context.Context, name string, ins []model.Input) ([]model.Prediction, error) {
	e, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	pr, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(pr)

	m := e.model.Load()
	out := make([]model.Prediction, len(ins))
	for i, in := range ins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.PredictBuf(in, pr.buf)
	}
	return out, nil
}

// Reload re-reads the named artifact and swaps it in. Predictions already
// running finish on the previous model. On failure the previous model stays.
func (p *Pool) Reload(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := p.lookup(name)
	if err != nil {
		return err
	}

	m, err := engine.LoadFile(e.path)
	if err == nil {
		e.model.Store(m)
		p.logger.Info("model reloaded", zap.String("model", name), zap.Int("features", m.Dim()))
	} else {
		err = errors.Wrapf(err, "pool: reload %s", name)
		p.logger.Warn("model reload failed, keeping previous model",
			zap.String("model", name), zap.Error(err))
	}
	if p.onReload != nil {
		p.onReload(name, err)
	}
	return err
}

// ReloadAll reloads every registered model and returns the first error.
func (p *Pool) ReloadAll(ctx context.Context) error {
	var first error
	for _, name := range p.Models() {
		if err := p.Reload(ctx, name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Watch reloads models whose artifact file is written or renamed into place.
// It blocks until ctx is done or the pool is closed. Without WithWatch it
// returns immediately.
func (p *Pool) Watch(ctx context.Context) error {
	if p.watcher == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			for _, name := range p.namesFor(filepath.Clean(ev.Name)) {
				_ = p.Reload(ctx, name)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

// namesFor returns the models backed by the artifact at path.
func (p *Pool) namesFor(path string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var names []string
	for name, e := range p.entries {
		if e.path == path {
			names = append(names, name)
		}
	}
	return names
}

// Close stops the watcher and rejects further calls. In-flight predictions
// are not interrupted.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}
