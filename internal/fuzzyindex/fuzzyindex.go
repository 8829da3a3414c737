// Package fuzzyindex implements the sparse nearest-neighbor index over
// TF-IDF-weighted character trigrams: build an inverted posting list
// from a set of documents, answer top-K negative-dot-product queries
// against it, and serialize/deserialize the whole thing to bytes.
//
// State machine: Empty -> Built -> (Saved <-> Loaded). The index is
// polymorphic over a document payload type P via a Go generic
// parameter plus a caller-supplied PayloadCodec, rather than the
// dynamically-typed records a scripting-language port would reach for.
package fuzzyindex

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mayhem/fuzzyindex/internal/binio"
	"github.com/mayhem/fuzzyindex/internal/tfidf"
)

// MaxResults is the K in top-K search.
const MaxResults = 500

// ErrEmptyInput is returned by Build when given no documents.
var ErrEmptyInput = errors.New("fuzzyindex: empty input")

// ErrNotBuilt is returned by Search on an index with no Build/Load yet.
var ErrNotBuilt = errors.New("fuzzyindex: index not built")

// Document is one unit indexed by a fuzzy index: a normalized text
// value, its position in the document list (ID must equal the
// document's index in the slice passed to Build), and an opaque
// caller-defined payload.
type Document[P any] struct {
	Text    string
	ID      uint32
	Payload P
}

// Result is one ranked hit returned by Search.
type Result[P any] struct {
	Text       string
	ID         uint32
	Confidence float64
	Payload    P
}

// PayloadCodec marshals and unmarshals the opaque per-document payload
// so an Index[P] can be serialized without reflection or gob.
type PayloadCodec[P any] interface {
	Marshal(P) ([]byte, error)
	Unmarshal([]byte) (P, error)
}

type posting struct {
	docID  uint32
	weight float64
}

// Index is a built (or loaded) fuzzy index over documents of type P.
type Index[P any] struct {
	model    *tfidf.Model
	postings map[int32][]posting
	docs     []Document[P]
	codec    PayloadCodec[P]
}

// New returns an empty Index bound to codec, ready for Build or Load.
func New[P any](codec PayloadCodec[P]) *Index[P] {
	return &Index[P]{codec: codec}
}

// Build fits a trigram TF-IDF model over documents' Text fields and
// inserts their vectors into the inverted posting list. Fails with
// ErrEmptyInput on an empty document list, and with the underlying
// tfidf.ErrEmptyVocabulary if no document yields any trigram.
func (idx *Index[P]) Build(documents []Document[P]) error {
	if len(documents) == 0 {
		return ErrEmptyInput
	}

	texts := make([]string, len(documents))
	for i, d := range documents {
		texts[i] = d.Text
	}

	model, err := tfidf.Fit(texts)
	if err != nil {
		return fmt.Errorf("fuzzyindex: %w", err)
	}

	postings := make(map[int32][]posting)
	for _, d := range documents {
		vec := model.Transform(d.Text)
		for _, term := range vec {
			postings[term.Column] = append(postings[term.Column], posting{docID: d.ID, weight: term.Weight})
		}
	}

	idx.model = model
	idx.postings = postings
	idx.docs = documents
	return nil
}

// Search transforms query with the fitted vectorizer, retrieves the
// top-MaxResults documents by descending dot product (confidence),
// and filters out anything below minConfidence. Results are returned
// in descending confidence order.
func (idx *Index[P]) Search(query string, minConfidence float64) ([]Result[P], error) {
	if idx.model == nil {
		return nil, ErrNotBuilt
	}

	qvec := idx.model.Transform(query)
	if len(qvec) == 0 {
		return nil, nil
	}

	scores := make(map[uint32]float64)
	for _, term := range qvec {
		for _, p := range idx.postings[term.Column] {
			scores[p.docID] += term.Weight * p.weight
		}
	}
	if len(scores) == 0 {
		return nil, nil
	}

	ids := make([]uint32, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > MaxResults {
		ids = ids[:MaxResults]
	}

	results := make([]Result[P], 0, len(ids))
	for _, id := range ids {
		conf := scores[id]
		if conf < minConfidence {
			continue
		}
		doc := idx.docs[id]
		results = append(results, Result[P]{
			Text:       doc.Text,
			ID:         doc.ID,
			Confidence: conf,
			Payload:    doc.Payload,
		})
	}
	return results, nil
}

// MarshalBinary serializes the index as three length-prefixed
// sections: the TF-IDF model, the inverted posting list, and the
// document payload list.
func (idx *Index[P]) MarshalBinary() ([]byte, error) {
	if idx.model == nil {
		return nil, ErrNotBuilt
	}

	modelBlob, err := idx.model.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("fuzzyindex: marshal model: %w", err)
	}

	postingsW := binio.NewWriter()
	postingsW.WriteU32(uint32(len(idx.postings)))
	for col, plist := range idx.postings {
		postingsW.WriteI32(col)
		postingsW.WriteU32(uint32(len(plist)))
		for _, p := range plist {
			postingsW.WriteU32(p.docID)
			postingsW.WriteF64(p.weight)
		}
	}

	docsW := binio.NewWriter()
	docsW.WriteU32(uint32(len(idx.docs)))
	for _, d := range idx.docs {
		docsW.WriteU32(d.ID)
		docsW.WriteString(d.Text)
		payload, err := idx.codec.Marshal(d.Payload)
		if err != nil {
			return nil, fmt.Errorf("fuzzyindex: marshal payload for doc %d: %w", d.ID, err)
		}
		docsW.WriteBytes(payload)
	}

	w := binio.NewWriter()
	w.WriteSection(modelBlob)
	w.WriteSection(postingsW.Bytes())
	w.WriteSection(docsW.Bytes())
	return w.Bytes(), nil
}

// UnmarshalBinary is the inverse of MarshalBinary. The Index must
// already be bound to a PayloadCodec via New.
func (idx *Index[P]) UnmarshalBinary(data []byte) error {
	r := binio.NewReader(data)

	modelBlob, err := r.ReadSection()
	if err != nil {
		return fmt.Errorf("fuzzyindex: reading model section: %w", err)
	}
	model := &tfidf.Model{}
	if err := model.UnmarshalBinary(modelBlob); err != nil {
		return fmt.Errorf("fuzzyindex: unmarshal model: %w", err)
	}

	postingsBlob, err := r.ReadSection()
	if err != nil {
		return fmt.Errorf("fuzzyindex: reading postings section: %w", err)
	}
	postings, err := decodePostings(postingsBlob)
	if err != nil {
		return err
	}

	docsBlob, err := r.ReadSection()
	if err != nil {
		return fmt.Errorf("fuzzyindex: reading docs section: %w", err)
	}
	docs, err := idx.decodeDocs(docsBlob)
	if err != nil {
		return err
	}

	idx.model = model
	idx.postings = postings
	idx.docs = docs
	return nil
}

func decodePostings(blob []byte) (map[int32][]posting, error) {
	r := binio.NewReader(blob)
	numCols, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("fuzzyindex: reading column count: %w", err)
	}

	postings := make(map[int32][]posting, numCols)
	for i := uint32(0); i < numCols; i++ {
		col, err := r.ReadI32()
		if err != nil {
			return nil, fmt.Errorf("fuzzyindex: reading column %d: %w", i, err)
		}
		n, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("fuzzyindex: reading posting count for column %d: %w", col, err)
		}
		plist := make([]posting, n)
		for j := uint32(0); j < n; j++ {
			docID, err := r.ReadU32()
			if err != nil {
				return nil, fmt.Errorf("fuzzyindex: reading posting %d of column %d: %w", j, col, err)
			}
			weight, err := r.ReadF64()
			if err != nil {
				return nil, fmt.Errorf("fuzzyindex: reading weight %d of column %d: %w", j, col, err)
			}
			plist[j] = posting{docID: docID, weight: weight}
		}
		postings[col] = plist
	}
	return postings, nil
}

func (idx *Index[P]) decodeDocs(blob []byte) ([]Document[P], error) {
	r := binio.NewReader(blob)
	n, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("fuzzyindex: reading doc count: %w", err)
	}

	docs := make([]Document[P], n)
	for i := uint32(0); i < n; i++ {
		id, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("fuzzyindex: reading doc %d id: %w", i, err)
		}
		text, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("fuzzyindex: reading doc %d text: %w", i, err)
		}
		payloadBytes, err := r.ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("fuzzyindex: reading doc %d payload: %w", i, err)
		}
		payload, err := idx.codec.Unmarshal(payloadBytes)
		if err != nil {
			return nil, fmt.Errorf("fuzzyindex: unmarshal doc %d payload: %w", i, err)
		}
		docs[i] = Document[P]{ID: id, Text: text, Payload: payload}
	}
	return docs, nil
}

// NumDocs reports how many documents the index holds.
func (idx *Index[P]) NumDocs() int {
	return len(idx.docs)
}
