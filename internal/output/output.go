// Package output defines destinations for prediction records: the served
// predictions the server audits and the scores the predict command emits.
package output

import (
	"context"
	"time"

	"github.com/crimson-sun/sentiment/internal/model"
)

// Record is one prediction as written to a sink.
type Record struct {
	Time        time.Time `json:"time"`
	RequestID   string    `json:"request_id,omitempty"`
	Model       string    `json:"model,omitempty"`
	Text        string    `json:"text,omitempty"`
	Sentiment   string    `json:"sentiment"`
	Label       bool      `json:"label"`
	Probability float64   `json:"probability"`
	Score       float64   `json:"score"`
}

// NewRecord builds a record for p produced by the named model.
func NewRecord(modelName, requestID string, p model.Prediction) Record {
	return Record{
		Time:        time.Now().UTC(),
		RequestID:   requestID,
		Model:       modelName,
		Text:        p.Text,
		Sentiment:   model.SentimentOf(p.Label),
		Label:       p.Label,
		Probability: p.Probability,
		Score:       p.Score,
	}
}

// Output defines the interface for prediction record destinations.
type Output interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}
