package model

// Prediction is the classifier output for one Input.
// Label is always the thresholded value of Score (Score >= 0, i.e.
// Probability >= 0.5).
type Prediction struct {
	Text        string  `json:"text"`
	Label       bool    `json:"label"`
	Probability float64 `json:"probability"` // calibrated P(positive), in [0,1]
	Score       float64 `json:"score"`       // raw logit
}

// Display strings for a predicted label.
const (
	Positive = "Positive"
	Negative = "Negative"
)

// SentimentOf maps a label to its display string.
func SentimentOf(label bool) string {
	if label {
		return Positive
	}
	return Negative
}

// Metrics summarises classifier quality on a labeled test set.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	AUC       float64 `json:"auc"`
	F1        float64 `json:"f1"`
	Positives int     `json:"positives"`
	Negatives int     `json:"negatives"`
}
