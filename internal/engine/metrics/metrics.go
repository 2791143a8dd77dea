package metrics

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/crimson-sun/sentiment/internal/model"
)

var (
	// ErrEmpty is returned when there is nothing to evaluate.
	ErrEmpty = errors.New("metrics: no examples")
	// ErrSingleClass is returned when the labels hold only one class; AUC is
	// undefined in that case.
	ErrSingleClass = errors.New("metrics: labels contain a single class")
)

// Evaluate computes accuracy and F1 from the model's predicted labels, and
// ROC AUC from its positive-class probabilities, against the true labels.
// preds must be the labels the model itself reports so that evaluation
// agrees with served predictions.
func Evaluate(labels, preds []bool, probs []float64) (model.Metrics, error) {
	if len(labels) == 0 {
		return model.Metrics{}, ErrEmpty
	}
	if len(labels) != len(preds) || len(labels) != len(probs) {
		return model.Metrics{}, errors.Errorf("metrics: %d labels, %d predictions, %d probabilities",
			len(labels), len(preds), len(probs))
	}

	var tp, fp, tn, fn int
	for i, l := range labels {
		pred := preds[i]
		switch {
		case pred && l:
			tp++
		case pred && !l:
			fp++
		case !pred && l:
			fn++
		default:
			tn++
		}
	}
	pos, neg := tp+fn, tn+fp
	if pos == 0 || neg == 0 {
		return model.Metrics{}, ErrSingleClass
	}

	return model.Metrics{
		Accuracy:  float64(tp+tn) / float64(len(labels)),
		AUC:       AUC(labels, probs),
		F1:        f1(tp, fp, fn),
		Positives: pos,
		Negatives: neg,
	}, nil
}

// AUC returns the area under the ROC curve. Both classes must be present.
func AUC(labels []bool, probs []float64) float64 {
	y := append([]float64(nil), probs...)
	classes := append([]bool(nil), labels...)
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return clamp01(integrate.Trapezoidal(fpr, tpr))
}

// f1 is the harmonic mean of precision and recall, 0 when either is undefined.
func f1(tp, fp, fn int) float64 {
	if tp == 0 {
		return 0
	}
	precision := float64(tp) / float64(tp+fp)
	recall := float64(tp) / float64(tp+fn)
	return 2 * precision * recall / (precision + recall)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
