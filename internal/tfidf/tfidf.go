// Package tfidf implements the character-trigram TF-IDF vectorizer
// fuzzyindex builds its sparse inverted index on top of: fit a
// vocabulary and IDF weights from a document corpus, then transform
// strings into L2-normalized sparse vectors over that vocabulary.
//
// The contract matches scikit-learn's TfidfVectorizer with
// min_df=1, sublinear_tf=False, smooth_idf=True, norm='l2', and a
// custom analyzer that yields the contiguous length-3 windows of the
// (already-normalized) input string.
package tfidf

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/mayhem/fuzzyindex/internal/binio"
)

// ErrEmptyVocabulary is returned by Fit when the corpus is empty or
// produces no trigrams at all (every document shorter than 3 bytes).
var ErrEmptyVocabulary = errors.New("tfidf: empty vocabulary")

// Term is one (column, weight) pair of a sparse vector.
type Term struct {
	Column int32
	Weight float64
}

// Vector is a sparse, L2-normalized bag of weighted trigram columns.
type Vector []Term

// Model is an immutable, fitted trigram vocabulary plus IDF weights.
type Model struct {
	columns map[string]int32 // trigram -> column index
	idf     []float64        // column index -> idf weight
}

// Trigrams splits s into its ordered multiset of length-3 byte windows
// (one per character for the ASCII output of normalize). Strings
// shorter than 3 bytes yield none.
func Trigrams(s string) []string {
	if len(s) < 3 {
		return nil
	}
	out := make([]string, 0, len(s)-2)
	for i := 0; i+3 <= len(s); i++ {
		out = append(out, s[i:i+3])
	}
	return out
}

// Fit builds a Model from a corpus of already-normalized documents.
// Column indices are assigned in order of first occurrence, so the
// same corpus always fits to the same Model shape.
func Fit(documents []string) (*Model, error) {
	columns := make(map[string]int32)
	docFreq := make(map[string]int)

	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, tri := range Trigrams(doc) {
			if _, ok := columns[tri]; !ok {
				columns[tri] = int32(len(columns))
			}
			if !seen[tri] {
				docFreq[tri]++
				seen[tri] = true
			}
		}
	}

	if len(columns) == 0 {
		return nil, ErrEmptyVocabulary
	}

	n := float64(len(documents))
	idf := make([]float64, len(columns))
	for tri, col := range columns {
		df := float64(docFreq[tri])
		idf[col] = math.Log((1+n)/(1+df)) + 1
	}

	return &Model{columns: columns, idf: idf}, nil
}

// Transform converts a normalized string into its sparse, L2-normalized
// TF-IDF vector under the fitted vocabulary. Trigrams absent from the
// vocabulary are silently dropped. Pure and safe for concurrent use.
func (m *Model) Transform(s string) Vector {
	tf := make(map[int32]float64)
	for _, tri := range Trigrams(s) {
		col, ok := m.columns[tri]
		if !ok {
			continue
		}
		tf[col]++
	}
	if len(tf) == 0 {
		return nil
	}

	vec := make(Vector, 0, len(tf))
	for col, count := range tf {
		vec = append(vec, Term{Column: col, Weight: count * m.idf[col]})
	}
	// Order terms by column so the output (and the norm's summation
	// order) does not depend on map iteration order.
	sort.Slice(vec, func(i, j int) bool { return vec[i].Column < vec[j].Column })

	var norm float64
	for _, t := range vec {
		norm += t.Weight * t.Weight
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i].Weight /= norm
		}
	}
	return vec
}

// NumColumns reports the size of the fitted vocabulary.
func (m *Model) NumColumns() int {
	return len(m.idf)
}

// MarshalBinary serializes the model as:
//
//	u32 numColumns
//	for each column in column order: u32 trigramLen, trigram bytes, f64 idf
func (m *Model) MarshalBinary() ([]byte, error) {
	byColumn := make([]string, len(m.columns))
	for tri, col := range m.columns {
		byColumn[col] = tri
	}

	w := binio.NewWriter()
	w.WriteU32(uint32(len(byColumn)))
	for col, tri := range byColumn {
		w.WriteString(tri)
		w.WriteF64(m.idf[col])
	}
	return w.Bytes(), nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (m *Model) UnmarshalBinary(data []byte) error {
	r := binio.NewReader(data)
	n, err := r.ReadU32()
	if err != nil {
		return err
	}

	columns := make(map[string]int32, n)
	idf := make([]float64, n)
	for col := uint32(0); col < n; col++ {
		tri, err := r.ReadString()
		if err != nil {
			return fmt.Errorf("tfidf: reading column %d: %w", col, err)
		}
		weight, err := r.ReadF64()
		if err != nil {
			return fmt.Errorf("tfidf: reading idf %d: %w", col, err)
		}
		columns[tri] = int32(col)
		idf[col] = weight
	}

	m.columns = columns
	m.idf = idf
	return nil
}
