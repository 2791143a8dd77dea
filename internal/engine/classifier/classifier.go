package classifier

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/crimson-sun/sentiment/internal/engine/featurizer"
)

var (
	// ErrEmpty is returned when Fit receives no training vectors.
	ErrEmpty = errors.New("classifier: no training data")
	// ErrSingleClass is returned when the training labels contain only one class.
	ErrSingleClass = errors.New("classifier: training data contains a single class")
)

// Options controls the logistic regression fit.
type Options struct {
	L2            float64 // L2 penalty on weights (bias is not penalized)
	MaxIterations int     // L-BFGS major iteration cap; <=0 means 100
}

// FitInfo describes how the optimizer terminated.
type FitInfo struct {
	Iterations int
	Loss       float64
	Status     string
}

// Classifier is a binary logistic regression over sparse feature vectors.
// It is immutable after Fit.
type Classifier struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Fit minimizes mean logistic loss + L2/2·‖w‖² with L-BFGS.
// vectors[i] has label labels[i]; dim is the feature-space size.
func Fit(vectors []featurizer.Vector, labels []bool, dim int, opts Options) (*Classifier, FitInfo, error) {
	if len(vectors) == 0 {
		return nil, FitInfo{}, ErrEmpty
	}
	if len(vectors) != len(labels) {
		return nil, FitInfo{}, errors.Errorf("classifier: %d vectors but %d labels", len(vectors), len(labels))
	}
	pos := 0
	for _, l := range labels {
		if l {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		return nil, FitInfo{}, ErrSingleClass
	}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}

	obj := &objective{vectors: vectors, labels: labels, dim: dim, l2: opts.L2}
	problem := optimize.Problem{Func: obj.loss, Grad: obj.grad}
	settings := &optimize.Settings{
		GradientThreshold: 1e-6,
		MajorIterations:   maxIter,
	}

	result, err := optimize.Minimize(problem, make([]float64, dim+1), settings, &optimize.LBFGS{})
	if result == nil {
		return nil, FitInfo{}, errors.Wrap(err, "classifier: optimize")
	}
	// A line-search stall after progress still leaves a usable optimum; only
	// reject a result that is not finite.
	x := result.X
	if floats.HasNaN(x) || math.IsInf(result.F, 0) {
		return nil, FitInfo{}, errors.Errorf("classifier: optimizer diverged (%v)", result.Status)
	}

	c := &Classifier{Weights: append([]float64(nil), x[:dim]...), Bias: x[dim]}
	info := FitInfo{
		Iterations: result.Stats.MajorIterations,
		Loss:       result.F,
		Status:     result.Status.String(),
	}
	return c, info, nil
}

// Dim returns the number of weights.
func (c *Classifier) Dim() int {
	return len(c.Weights)
}

// Score returns the raw logit w·v + b.
func (c *Classifier) Score(v featurizer.Vector) float64 {
	return v.Dot(c.Weights) + c.Bias
}

// Probability returns sigmoid(Score(v)).
func (c *Classifier) Probability(v featurizer.Vector) float64 {
	return Sigmoid(c.Score(v))
}

// Sigmoid is the logistic function, evaluated without overflow.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1+exp(t)) without overflow.
func softplus(t float64) float64 {
	if t > 0 {
		return t + math.Log1p(math.Exp(-t))
	}
	return math.Log1p(math.Exp(t))
}

// objective holds the training set for the loss and gradient callbacks.
// x is laid out as [w_0 … w_{dim-1}, b].
type objective struct {
	vectors []featurizer.Vector
	labels  []bool
	dim     int
	l2      float64
}

func sign(label bool) float64 {
	if label {
		return 1
	}
	return -1
}

func (o *objective) loss(x []float64) float64 {
	w, b := x[:o.dim], x[o.dim]
	var sum float64
	for i, v := range o.vectors {
		z := v.Dot(w) + b
		sum += softplus(-sign(o.labels[i]) * z)
	}
	return sum/float64(len(o.vectors)) + 0.5*o.l2*floats.Dot(w, w)
}

func (o *objective) grad(g, x []float64) {
	w, b := x[:o.dim], x[o.dim]
	for i := range g {
		g[i] = 0
	}
	n := float64(len(o.vectors))
	gw := g[:o.dim]
	for i, v := range o.vectors {
		y := sign(o.labels[i])
		z := v.Dot(w) + b
		// d/dz softplus(-y z) = -y·sigmoid(-y z)
		coef := -y * Sigmoid(-y*z) / n
		for k, idx := range v.Indices {
			gw[idx] += coef * v.Values[k]
		}
		g[o.dim] += coef
	}
	floats.AddScaled(gw, o.l2, w)
}
