package featurizer

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// charN is the character n-gram length.
const charN = 3

// Term prefixes keep the three n-gram families apart in one vocabulary.
const (
	prefixWord   = "w:"
	prefixBigram = "b:"
	prefixChar   = "c:"
)

const numFamilies = 3

// Options controls vocabulary construction.
type Options struct {
	MinCount    int // minimum document frequency; <1 means 1
	MaxFeatures int // vocabulary cap; 0 = unlimited
}

// State is the serializable form of a fitted Featurizer.
type State struct {
	Terms []string `json:"terms"`
}

// Featurizer turns raw text into L2-normalized sparse n-gram vectors.
// It is immutable after Fit and safe for concurrent use when each caller
// supplies its own Buffer.
type Featurizer struct {
	vocab  *vocab
	family []uint8 // n-gram family per feature index
}

// Fit builds the vocabulary from the given corpus.
func Fit(texts []string, opts Options) *Featurizer {
	minCount := opts.MinCount
	if minCount < 1 {
		minCount = 1
	}

	counts := make(map[string]int)
	seen := make(map[string]struct{})
	for _, text := range texts {
		clear(seen)
		for _, term := range extract(text) {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			counts[term]++
		}
	}

	f, _ := newFeaturizer(buildVocab(counts, minCount, opts.MaxFeatures))
	return f
}

// FromState rebuilds a Featurizer from its serialized form.
func FromState(s State) (*Featurizer, error) {
	v, err := vocabFromTerms(s.Terms)
	if err != nil {
		return nil, err
	}
	return newFeaturizer(v)
}

func newFeaturizer(v *vocab) (*Featurizer, error) {
	family := make([]uint8, v.size())
	for i, term := range v.terms {
		fam, ok := termFamily(term)
		if !ok {
			return nil, errors.Errorf("featurizer: term %q has no family prefix", term)
		}
		family[i] = fam
	}
	return &Featurizer{vocab: v, family: family}, nil
}

// State returns the serializable form of f.
func (f *Featurizer) State() State {
	terms := make([]string, len(f.vocab.terms))
	copy(terms, f.vocab.terms)
	return State{Terms: terms}
}

// Dim returns the feature-space dimensionality.
func (f *Featurizer) Dim() int {
	return f.vocab.size()
}

// Transform featurizes text with a fresh buffer. The returned vector is
// owned by the caller.
func (f *Featurizer) Transform(text string) Vector {
	return f.TransformBuf(text, NewBuffer())
}

// TransformBuf featurizes text using buf for scratch space. The returned
// vector aliases buf and is only valid until buf is used again.
func (f *Featurizer) TransformBuf(text string, buf *Buffer) Vector {
	buf.reset()

	for _, term := range extract(text) {
		if id, ok := f.vocab.lookup(term); ok {
			buf.counts[id]++
		}
	}
	if len(buf.counts) == 0 {
		return Vector{}
	}

	var sumSq [numFamilies]float64
	for id, c := range buf.counts {
		sumSq[f.family[id]] += c * c
	}
	present := 0
	for _, s := range sumSq {
		if s > 0 {
			present++
		}
	}
	scale := 1 / math.Sqrt(float64(present))

	for id := range buf.counts {
		buf.idx = append(buf.idx, id)
	}
	sort.Ints(buf.idx)
	for _, id := range buf.idx {
		c := buf.counts[id]
		buf.val = append(buf.val, c/math.Sqrt(sumSq[f.family[id]])*scale)
	}
	return Vector{Indices: buf.idx, Values: buf.val}
}

// extract returns every n-gram term of text, with repeats.
func extract(text string) []string {
	ws := words(normalize(text))
	if len(ws) == 0 {
		return nil
	}

	terms := make([]string, 0, len(ws)*6)
	for i, w := range ws {
		terms = append(terms, prefixWord+w)
		if i+1 < len(ws) {
			terms = append(terms, prefixBigram+w+" "+ws[i+1])
		}
		for _, g := range charNGrams(w, charN) {
			terms = append(terms, prefixChar+g)
		}
	}
	return terms
}

func termFamily(term string) (uint8, bool) {
	switch {
	case strings.HasPrefix(term, prefixWord):
		return 0, true
	case strings.HasPrefix(term, prefixBigram):
		return 1, true
	case strings.HasPrefix(term, prefixChar):
		return 2, true
	default:
		return 0, false
	}
}
