package sentiment

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/sentiment/internal/model"
	"github.com/crimson-sun/sentiment/internal/pool"
)

const modelName = "default"

// ErrNoModel is returned by New when no model path is configured.
var ErrNoModel = errors.New("sentiment: no model path configured")

// Sentiment classifies texts with a loaded model. Safe for concurrent use.
type Sentiment struct {
	pool *pool.Pool
}

// New loads the model artifact and prepares the predictor pool.
func New(opts ...Option) (*Sentiment, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.modelPath == "" {
		return nil, ErrNoModel
	}

	p, err := pool.New(pool.WithSize(o.poolSize), pool.WithLogger(o.logger))
	if err != nil {
		return nil, errors.Wrap(err, "sentiment")
	}
	if err := p.Register(context.Background(), modelName, o.modelPath); err != nil {
		p.Close()
		return nil, errors.Wrap(err, "sentiment")
	}
	return &Sentiment{pool: p}, nil
}

// Classify classifies a single text. Empty text is classified like any
// other input.
func (s *Sentiment) Classify(ctx context.Context, text string) (Result, error) {
	p, err := s.pool.Predict(ctx, modelName, model.Input{Text: text})
	if err != nil {
		return Result{}, err
	}
	return resultFromPrediction(p), nil
}

// ClassifyBatch classifies texts, spreading them across the pool. Results
// are in input order.
func (s *Sentiment) ClassifyBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	chunk := (len(texts) + s.pool.Size() - 1) / s.pool.Size()
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += chunk {
		end := min(start+chunk, len(texts))
		g.Go(func() error {
			ins := make([]model.Input, end-start)
			for i, t := range texts[start:end] {
				ins[i] = model.Input{Text: t}
			}
			preds, err := s.pool.PredictBatch(ctx, modelName, ins)
			if err != nil {
				return err
			}
			for i, p := range preds {
				results[start+i] = resultFromPrediction(p)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Reload re-reads the model artifact. On failure the previous model stays
// in use.
func (s *Sentiment) Reload(ctx context.Context) error {
	return s.pool.Reload(ctx, modelName)
}

// Close releases the pool. Calls made after Close fail.
func (s *Sentiment) Close() error {
	return s.pool.Close()
}
