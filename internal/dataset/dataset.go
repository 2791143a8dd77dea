package dataset

import (
	"bufio"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/crimson-sun/sentiment/internal/model"
)

var (
	// ErrEmpty is returned when a dataset contains no records.
	ErrEmpty = errors.New("dataset: no records")
	// ErrEmptyPartition is returned when a split leaves train or test empty.
	ErrEmptyPartition = errors.New("dataset: empty train or test partition")
)

// LabelColumn selects where the label sits on each line.
type LabelColumn int

const (
	LabelFirst LabelColumn = iota // label<delim>text
	LabelLast                     // text<delim>label
)

// ParseLabelColumn maps "first"/"last" to a LabelColumn.
func ParseLabelColumn(s string) (LabelColumn, error) {
	switch strings.ToLower(s) {
	case "", "first":
		return LabelFirst, nil
	case "last":
		return LabelLast, nil
	default:
		return 0, errors.Errorf("dataset: unknown label column %q", s)
	}
}

// Options controls how lines are parsed.
type Options struct {
	Delimiter   string
	LabelColumn LabelColumn
}

func (o Options) delimiter() string {
	if o.Delimiter == "" {
		return "\t"
	}
	return o.Delimiter
}

// LoadFile reads all labeled examples from the file at path.
func LoadFile(path string, opts Options) ([]model.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "dataset")
	}
	defer f.Close()

	examples, err := Read(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", path)
	}
	return examples, nil
}

// Read parses one example per line. Blank lines are skipped; any other line
// that lacks a text field or a boolean-like label is an error.
func Read(r io.Reader, opts Options) ([]model.Example, error) {
	delim := opts.delimiter()
	var examples []model.Example

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		var rawLabel, text string
		var ok bool
		if opts.LabelColumn == LabelLast {
			i := strings.LastIndex(line, delim)
			ok = i >= 0
			if ok {
				text, rawLabel = line[:i], line[i+len(delim):]
			}
		} else {
			rawLabel, text, ok = strings.Cut(line, delim)
		}
		if !ok {
			return nil, errors.Errorf("line %d: missing delimiter %q", lineNo, delim)
		}

		label, err := cast.ToBoolE(strings.TrimSpace(rawLabel))
		if err != nil {
			return nil, errors.Errorf("line %d: invalid label %q", lineNo, rawLabel)
		}
		examples = append(examples, model.Example{Text: text, Label: label})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read error")
	}
	if len(examples) == 0 {
		return nil, ErrEmpty
	}
	return examples, nil
}

// Split shuffles examples with a seeded PRNG and partitions them so that
// len(test) == round(testFraction * len(examples)). The same seed always
// yields the same partition. The input slice is not modified.
func Split(examples []model.Example, testFraction float64, seed uint64) (train, test []model.Example, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, errors.Errorf("dataset: test fraction must be in (0,1), got %v", testFraction)
	}
	n := len(examples)
	if n == 0 {
		return nil, nil, ErrEmpty
	}

	nTest := int(math.Round(testFraction * float64(n)))
	if nTest == 0 || nTest == n {
		return nil, nil, errors.Wrapf(ErrEmptyPartition, "%d records with test fraction %v", n, testFraction)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	test = make([]model.Example, 0, nTest)
	train = make([]model.Example, 0, n-nTest)
	for k, i := range idx {
		if k < nTest {
			test = append(test, examples[i])
		} else {
			train = append(train, examples[i])
		}
	}
	return train, test, nil
}
