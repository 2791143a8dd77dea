package file

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/crimson-sun/sentiment/internal/output"
)

const (
	defaultBufSize    = 64 * 1024
	defaultMaxBackups = 9

	megabyte = 1 << 20
	// Keeps lumberjack's own size check out of the way; rotation is driven
	// by the byte threshold tracked here.
	unlimitedMB = 1 << 30
)

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithMaxBackups sets how many rotated files are kept. 0 keeps all.
// Default: 9.
func WithMaxBackups(n int) Option {
	return func(o *Output) { o.maxBackups = n }
}

// WithCompress gzips rotated files.
func WithCompress(compress bool) Option {
	return func(o *Output) { o.compress = compress }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// WithIncludeText keeps the submitted text in each record.
func WithIncludeText(include bool) Option {
	return func(o *Output) { o.includeText = include }
}

// Output appends prediction records as NDJSON to a file, with buffered I/O
// and optional size-based rotation. Rotated files are renamed with a
// timestamp ({name}-{time}{ext}) next to the live file.
type Output struct {
	mu          sync.Mutex
	w           *bufio.Writer
	lj          *lumberjack.Logger
	includeText bool
	maxSize     int64
	maxBackups  int
	compress    bool
	written     int64
	bufSize     int
}

// New prepares path for appending. The file itself is opened on first write.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{
		bufSize:    defaultBufSize,
		maxBackups: defaultMaxBackups,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "file output: create dir")
	}
	info, err := os.Stat(path)
	switch {
	case err == nil:
		o.written = info.Size()
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "file output: stat %s", path)
	}

	limitMB := unlimitedMB
	if o.maxSize > 0 {
		limitMB = int(o.maxSize/megabyte) + 2
	}
	o.lj = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    limitMB,
		MaxBackups: o.maxBackups,
		Compress:   o.compress,
	}
	o.w = bufio.NewWriterSize(o.lj, o.bufSize)
	return o, nil
}

// Write appends rec as one JSON line.
func (o *Output) Write(_ context.Context, rec output.Record) error {
	data, err := json.Marshal(output.FormatRecord(rec, o.includeText))
	if err != nil {
		return errors.Wrap(err, "file output: marshal")
	}
	data = append(data, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.maxSize > 0 && o.written > 0 && o.written+int64(len(data)) > o.maxSize {
		if err := o.rotate(); err != nil {
			return errors.Wrap(err, "file output: rotate")
		}
	}

	n, err := o.w.Write(data)
	o.written += int64(n)
	return errors.Wrap(err, "file output: write")
}

// Flush writes buffered records through to the file.
func (o *Output) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return errors.Wrap(o.w.Flush(), "file output: flush")
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		o.lj.Close()
		return errors.Wrap(err, "file output: flush")
	}
	return o.lj.Close()
}

// rotate moves the live file aside and starts a fresh one. Backups beyond
// maxBackups are pruned in the background by lumberjack.
func (o *Output) rotate() error {
	if err := o.w.Flush(); err != nil {
		return err
	}
	if err := o.lj.Rotate(); err != nil {
		return err
	}
	o.written = 0
	return nil
}
