package sentiment

import "github.com/crimson-sun/sentiment/internal/model"

// Result is the classification of one text.
type Result struct {
	Text        string  `json:"text"`
	Positive    bool    `json:"positive"`
	Probability float64 `json:"probability"` // P(Positive), in [0,1]
	Score       float64 `json:"score"`       // raw decision value; >= 0 means Positive
}

// Sentiment returns "Positive" or "Negative".
func (r Result) Sentiment() string {
	return model.SentimentOf(r.Positive)
}

func resultFromPrediction(p model.Prediction) Result {
	return Result{
		Text:        p.Text,
		Positive:    p.Label,
		Probability: p.Probability,
		Score:       p.Score,
	}
}
