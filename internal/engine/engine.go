package engine

import (
	"github.com/pkg/errors"

	"github.com/crimson-sun/sentiment/internal/engine/classifier"
	"github.com/crimson-sun/sentiment/internal/engine/featurizer"
	"github.com/crimson-sun/sentiment/internal/engine/metrics"
	"github.com/crimson-sun/sentiment/internal/model"
)

// Options configures training.
type Options struct {
	Featurizer featurizer.Options
	Classifier classifier.Options
}

// Model is a fitted featurizer + logistic regression. It is immutable after
// Train or Load and safe for concurrent use.
type Model struct {
	feat *featurizer.Featurizer
	cls  *classifier.Classifier
}

// Train fits the featurizer and classifier on examples.
func Train(examples []model.Example, opts Options) (*Model, classifier.FitInfo, error) {
	texts := make([]string, len(examples))
	labels := make([]bool, len(examples))
	for i, e := range examples {
		texts[i] = e.Text
		labels[i] = e.Label
	}

	feat := featurizer.Fit(texts, opts.Featurizer)

	vectors := make([]featurizer.Vector, len(texts))
	for i, t := range texts {
		vectors[i] = feat.Transform(t)
	}

	cls, info, err := classifier.Fit(vectors, labels, feat.Dim(), opts.Classifier)
	if err != nil {
		return nil, info, errors.Wrap(err, "engine: train")
	}
	return &Model{feat: feat, cls: cls}, info, nil
}

// Dim returns the feature-space dimensionality.
func (m *Model) Dim() int {
	return m.feat.Dim()
}

// Predict classifies a single input.
func (m *Model) Predict(in model.Input) model.Prediction {
	return m.predict(in.Text, m.feat.Transform(in.Text))
}

// PredictBuf classifies in using buf as featurization scratch space.
// Callers must not share buf between goroutines.
func (m *Model) PredictBuf(in model.Input, buf *featurizer.Buffer) model.Prediction {
	return m.predict(in.Text, m.feat.TransformBuf(in.Text, buf))
}

func (m *Model) predict(text string, v featurizer.Vector) model.Prediction {
	score := m.cls.Score(v)
	return model.Prediction{
		Text:        text,
		Label:       score >= 0,
		Probability: classifier.Sigmoid(score),
		Score:       score,
	}
}

// PredictBatch classifies inputs in order, reusing one scratch buffer.
func (m *Model) PredictBatch(ins []model.Input) []model.Prediction {
	out := make([]model.Prediction, len(ins))
	buf := featurizer.NewBuffer()
	for i, in := range ins {
		out[i] = m.PredictBuf(in, buf)
	}
	return out
}

// Evaluate scores the model on labeled examples.
func (m *Model) Evaluate(examples []model.Example) (model.Metrics, error) {
	labels := make([]bool, len(examples))
	preds := make([]bool, len(examples))
	probs := make([]float64, len(examples))
	buf := featurizer.NewBuffer()
	for i, e := range examples {
		p := m.PredictBuf(model.Input{Text: e.Text}, buf)
		labels[i] = e.Label
		preds[i] = p.Label
		probs[i] = p.Probability
	}
	met, err := metrics.Evaluate(labels, preds, probs)
	if err != nil {
		return model.Metrics{}, errors.Wrap(err, "engine: evaluate")
	}
	return met, nil
}
