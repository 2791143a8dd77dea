package multi

import (
	"context"

	"go.uber.org/multierr"

	"github.com/crimson-sun/sentiment/internal/output"
)

// Multi fans out records to multiple outputs. Each Write delivers the record
// to every wrapped output in order; one failing output does not stop the rest.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi that fans out to the given outputs.
func New(outputs ...output.Output) *Multi {
	return &Multi{outputs: outputs}
}

// Len returns the number of wrapped outputs.
func (m *Multi) Len() int {
	return len(m.outputs)
}

// Write delivers rec to every wrapped output and combines their errors.
func (m *Multi) Write(ctx context.Context, rec output.Record) error {
	var err error
	for _, o := range m.outputs {
		err = multierr.Append(err, o.Write(ctx, rec))
	}
	return err
}

// Close closes every wrapped output and combines their errors.
func (m *Multi) Close() error {
	var err error
	for _, o := range m.outputs {
		err = multierr.Append(err, o.Close())
	}
	return err
}
