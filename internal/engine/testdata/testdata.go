package testdata

import (
	"bytes"
	_ "embed"

	"github.com/pkg/errors"

	"github.com/crimson-sun/sentiment/internal/dataset"
	"github.com/crimson-sun/sentiment/internal/model"
)

//go:embed corpus.tsv
var corpusTSV []byte

// CorpusTSV returns the raw label<TAB>text corpus, for tests that exercise
// file loading.
func CorpusTSV() []byte {
	return bytes.Clone(corpusTSV)
}

// LoadCorpus parses the embedded restaurant-review corpus.
func LoadCorpus() ([]model.Example, error) {
	examples, err := dataset.Read(bytes.NewReader(corpusTSV), dataset.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "parse corpus.tsv")
	}
	return examples, nil
}

// MustCorpus is LoadCorpus for test setup; it panics on error.
func MustCorpus() []model.Example {
	examples, err := LoadCorpus()
	if err != nil {
		panic(err)
	}
	return examples
}
