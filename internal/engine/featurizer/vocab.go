package featurizer

import (
	"sort"

	"github.com/pkg/errors"
)

// vocab maps n-gram terms to feature indices. Indices are positions in the
// terms slice, so the slice alone is enough to rebuild the mapping.
type vocab struct {
	termToID map[string]int
	terms    []string
}

// buildVocab keeps every term seen at least minCount times, most frequent
// first (ties broken lexically), capped at maxTerms (0 = unlimited).
func buildVocab(counts map[string]int, minCount, maxTerms int) *vocab {
	terms := make([]string, 0, len(counts))
	for term, c := range counts {
		if c >= minCount {
			terms = append(terms, term)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		ci, cj := counts[terms[i]], counts[terms[j]]
		if ci != cj {
			return ci > cj
		}
		return terms[i] < terms[j]
	})
	if maxTerms > 0 && len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	v, _ := vocabFromTerms(terms)
	return v
}

// vocabFromTerms rebuilds a vocab from a term list in index order.
func vocabFromTerms(terms []string) (*vocab, error) {
	m := make(map[string]int, len(terms))
	for i, t := range terms {
		if _, dup := m[t]; dup {
			return nil, errors.Errorf("vocab: duplicate term %q", t)
		}
		m[t] = i
	}
	return &vocab{termToID: m, terms: terms}, nil
}

// lookup returns the index of term and whether it is in the vocabulary.
func (v *vocab) lookup(term string) (int, bool) {
	id, ok := v.termToID[term]
	return id, ok
}

func (v *vocab) size() int {
	return len(v.terms)
}
