package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/crimson-sun/sentiment/internal/output"
)

// Format selects how records are rendered.
type Format int

const (
	// JSON writes one compact JSON object per line.
	JSON Format = iota
	// Pretty writes indented JSON.
	Pretty
	// Report writes the human-readable "Sentiment: ... | Prediction: ..." line.
	Report
)

// ParseFormat maps "json", "pretty" or "report" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return JSON, nil
	case "pretty":
		return Pretty, nil
	case "report":
		return Report, nil
	}
	return JSON, errors.Errorf("stdout output: unknown format %q", s)
}

// Output writes prediction records to a terminal-like writer. The CLI hands
// it the command's stdout.
type Output struct {
	mu          sync.Mutex
	w           io.Writer
	enc         *json.Encoder
	format      Format
	includeText bool
}

// New creates an Output writing to w. Report lines always carry the text;
// JSON formats carry it only when includeText is set.
func New(w io.Writer, format Format, includeText bool) *Output {
	enc := json.NewEncoder(w)
	if format == Pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{w: w, enc: enc, format: format, includeText: includeText}
}

func (o *Output) Write(_ context.Context, rec output.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.format == Report {
		_, err := fmt.Fprintln(o.w, ReportLine(rec))
		return errors.Wrap(err, "stdout output")
	}
	if err := o.enc.Encode(output.FormatRecord(rec, o.includeText)); err != nil {
		return errors.Wrap(err, "stdout output")
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}

// ReportLine renders rec the way the training demo prints predictions.
func ReportLine(rec output.Record) string {
	return fmt.Sprintf("Sentiment: %s | Prediction: %s | Probability: %.7g", rec.Text, rec.Sentiment, rec.Probability)
}
