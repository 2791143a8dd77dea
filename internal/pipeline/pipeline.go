// Package pipeline scores a stream of texts with a pooled model and writes
// one prediction record per text to an output.
package pipeline

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/model"
	"github.com/crimson-sun/sentiment/internal/output"
)

const (
	defaultBatchSize = 64
	maxLineBytes     = 1 << 20
)

// Predictor scores a batch of inputs with a named model. *pool.Pool
// satisfies it.
type Predictor interface {
	PredictBatch(ctx context.Context, name string, ins []model.Input) ([]model.Prediction, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many texts are scored per predictor acquisition.
// Default: 64.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline connects a predictor and an output.
type Pipeline struct {
	predictor Predictor
	model     string
	out       output.Output
	batchSize int
	logger    *zap.Logger
}

// New creates a Pipeline scoring with the named model.
func New(pred Predictor, modelName string, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		predictor: pred,
		model:     modelName,
		out:       out,
		batchSize: defaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Score reads one text per line from r and writes a record for each, in
// input order. Blank lines are skipped. It returns the number of records
// written.
func (p *Pipeline) Score(ctx context.Context, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	written := 0
	batch := make([]model.Input, 0, p.batchSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		batch = append(batch, model.Input{Text: line})
		if len(batch) == p.batchSize {
			n, err := p.flush(ctx, batch)
			written += n
			if err != nil {
				return written, err
			}
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return written, errors.Wrap(err, "pipeline read")
	}
	n, err := p.flush(ctx, batch)
	written += n
	return written, err
}

// ScoreTexts scores texts in order and writes a record for each.
func (p *Pipeline) ScoreTexts(ctx context.Context, texts []string) (int, error) {
	written := 0
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		batch := make([]model.Input, 0, end-start)
		for _, t := range texts[start:end] {
			batch = append(batch, model.Input{Text: t})
		}
		n, err := p.flush(ctx, batch)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (p *Pipeline) flush(ctx context.Context, batch []model.Input) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	preds, err := p.predictor.PredictBatch(ctx, p.model, batch)
	if err != nil {
		return 0, errors.Wrap(err, "pipeline predict")
	}
	for i, pred := range preds {
		if err := p.out.Write(ctx, output.NewRecord(p.model, "", pred)); err != nil {
			return i, errors.Wrap(err, "pipeline output")
		}
	}
	p.logger.Debug("batch scored", zap.Int("size", len(preds)))
	return len(preds), nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.out.Close()
}
