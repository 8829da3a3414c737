// Package artistindex assembles and caches the per-artist recording
// and release fuzzy indexes: it reads raw mapping rows for one artist,
// groups them into the two fuzzy-index document sets plus a
// recording/release cross-reference, and persists the result as a
// single blob keyed by artist_credit_id.
package artistindex

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mayhem/fuzzyindex/internal/binio"
	"github.com/mayhem/fuzzyindex/internal/fuzzyindex"
	"github.com/mayhem/fuzzyindex/internal/normalize"
	"github.com/mayhem/fuzzyindex/internal/store"
)

// RecordingDatum is one source row folded into a recording document's
// payload: the concrete (recording_id, release_id, score) triple that
// shared an encoded recording name.
type RecordingDatum struct {
	RecordingID uint32
	ReleaseID   uint32
	Score       int32
}

// ReleaseIDScore is one (release_id, score) pair folded into a release
// document's payload.
type ReleaseIDScore struct {
	ReleaseID uint32
	Score     int32
}

// Bundle is the per-artist artifact the cache stores: two fuzzy
// indexes plus a recording->releases cross-reference. A Bundle with
// both indexes nil is the empty sentinel meaning "no usable textual
// data for this artist".
type Bundle struct {
	RecordingIndex    *fuzzyindex.Index[[]RecordingDatum]
	ReleaseIndex      *fuzzyindex.Index[[]ReleaseIDScore]
	RecordingReleases map[uint32]map[uint32]struct{}
}

// Empty reports whether b is the empty sentinel.
func (b *Bundle) Empty() bool {
	return b == nil || b.RecordingIndex == nil || b.ReleaseIndex == nil
}

type recordingDatumCodec struct{}

func (recordingDatumCodec) Marshal(data []RecordingDatum) ([]byte, error) {
	w := binio.NewWriter()
	w.WriteU32(uint32(len(data)))
	for _, d := range data {
		w.WriteU32(d.RecordingID)
		w.WriteU32(d.ReleaseID)
		w.WriteI32(d.Score)
	}
	return w.Bytes(), nil
}

func (recordingDatumCodec) Unmarshal(b []byte) ([]RecordingDatum, error) {
	r := binio.NewReader(b)
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]RecordingDatum, n)
	for i := range out {
		id, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		relID, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		score, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		out[i] = RecordingDatum{RecordingID: id, ReleaseID: relID, Score: score}
	}
	return out, nil
}

type releaseIDScoreCodec struct{}

func (releaseIDScoreCodec) Marshal(data []ReleaseIDScore) ([]byte, error) {
	w := binio.NewWriter()
	w.WriteU32(uint32(len(data)))
	for _, d := range data {
		w.WriteU32(d.ReleaseID)
		w.WriteI32(d.Score)
	}
	return w.Bytes(), nil
}

func (releaseIDScoreCodec) Unmarshal(b []byte) ([]ReleaseIDScore, error) {
	r := binio.NewReader(b)
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]ReleaseIDScore, n)
	for i := range out {
		relID, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		score, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		out[i] = ReleaseIDScore{ReleaseID: relID, Score: score}
	}
	return out, nil
}

// insertionOrderedGroups accumulates values keyed by string, preserving
// first-seen key order so downstream document ids are deterministic.
type insertionOrderedGroups[V any] struct {
	order []string
	index map[string]int
	vals  [][]V
}

func newInsertionOrderedGroups[V any]() *insertionOrderedGroups[V] {
	return &insertionOrderedGroups[V]{index: make(map[string]int)}
}

func (g *insertionOrderedGroups[V]) add(key string, v V) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.order)
		g.index[key] = i
		g.order = append(g.order, key)
		g.vals = append(g.vals, nil)
	}
	g.vals[i] = append(g.vals[i], v)
}

// releaseKey is the structured (release_id, encoded_text) key used in
// place of a fragile "%d-%s" string concatenation.
type releaseKey struct {
	ReleaseID uint32
	Text      string
}

// BuildBundle assembles a Bundle for one artist from the mapping
// store's rows.
func BuildBundle(ctx context.Context, db *store.DB, artistCreditID uint32) (*Bundle, error) {
	rows, err := db.RowsForArtist(ctx, artistCreditID)
	if err != nil {
		return nil, fmt.Errorf("artistindex: build bundle %d: %w", artistCreditID, err)
	}

	recordingGroups := newInsertionOrderedGroups[RecordingDatum]()
	recordingReleases := make(map[uint32]map[uint32]struct{})
	// last-write-wins per (release_id, encoded_release_name), as the
	// source's release_data dict does via plain key assignment.
	releaseScores := make(map[releaseKey]int32)
	releaseKeyOrder := make([]releaseKey, 0)
	seenReleaseKey := make(map[releaseKey]bool)

	for _, row := range rows {
		if encoded, ok := normalize.Encode(row.RecordingName); ok {
			recordingGroups.add(encoded, RecordingDatum{
				RecordingID: row.RecordingID,
				ReleaseID:   row.ReleaseID,
				Score:       row.Score,
			})
			if recordingReleases[row.RecordingID] == nil {
				recordingReleases[row.RecordingID] = make(map[uint32]struct{})
			}
			recordingReleases[row.RecordingID][row.ReleaseID] = struct{}{}
		}

		if encoded, ok := normalize.Encode(row.ReleaseName); ok {
			key := releaseKey{ReleaseID: row.ReleaseID, Text: encoded}
			if !seenReleaseKey[key] {
				seenReleaseKey[key] = true
				releaseKeyOrder = append(releaseKeyOrder, key)
			}
			releaseScores[key] = row.Score
		}
	}

	releaseGroups := newInsertionOrderedGroups[ReleaseIDScore]()
	for _, key := range releaseKeyOrder {
		releaseGroups.add(key.Text, ReleaseIDScore{ReleaseID: key.ReleaseID, Score: releaseScores[key]})
	}

	recordingDocs := make([]fuzzyindex.Document[[]RecordingDatum], 0, len(recordingGroups.order))
	for i, text := range recordingGroups.order {
		recordingDocs = append(recordingDocs, fuzzyindex.Document[[]RecordingDatum]{
			Text:    text,
			ID:      uint32(i),
			Payload: recordingGroups.vals[i],
		})
	}

	releaseDocs := make([]fuzzyindex.Document[[]ReleaseIDScore], 0, len(releaseGroups.order))
	for i, text := range releaseGroups.order {
		releaseDocs = append(releaseDocs, fuzzyindex.Document[[]ReleaseIDScore]{
			Text:    text,
			ID:      uint32(i),
			Payload: releaseGroups.vals[i],
		})
	}

	var recordingIndex *fuzzyindex.Index[[]RecordingDatum]
	if len(recordingDocs) > 0 {
		idx := fuzzyindex.New[[]RecordingDatum](recordingDatumCodec{})
		if err := idx.Build(recordingDocs); err != nil && !errors.Is(err, fuzzyindex.ErrEmptyInput) {
			return nil, fmt.Errorf("artistindex: build recording index for artist %d: %w", artistCreditID, err)
		} else if err == nil {
			recordingIndex = idx
		}
	}

	var releaseIndex *fuzzyindex.Index[[]ReleaseIDScore]
	if len(releaseDocs) > 0 {
		idx := fuzzyindex.New[[]ReleaseIDScore](releaseIDScoreCodec{})
		if err := idx.Build(releaseDocs); err != nil && !errors.Is(err, fuzzyindex.ErrEmptyInput) {
			return nil, fmt.Errorf("artistindex: build release index for artist %d: %w", artistCreditID, err)
		} else if err == nil {
			releaseIndex = idx
		}
	}

	// If either index is null, the whole bundle becomes the empty
	// sentinel, to avoid rebuild loops on the next load.
	if recordingIndex == nil || releaseIndex == nil {
		return &Bundle{}, nil
	}

	return &Bundle{
		RecordingIndex:    recordingIndex,
		ReleaseIndex:      releaseIndex,
		RecordingReleases: recordingReleases,
	}, nil
}

// MarshalBinary serializes a Bundle as the concatenation of three
// length-prefixed sections: recording index, release index, and the
// recording/release cross-reference. The empty sentinel serializes to
// three empty sections.
func (b *Bundle) MarshalBinary() ([]byte, error) {
	w := binio.NewWriter()

	if b.Empty() {
		w.WriteSection(nil)
		w.WriteSection(nil)
		w.WriteSection(nil)
		return w.Bytes(), nil
	}

	recBlob, err := b.RecordingIndex.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("artistindex: marshal recording index: %w", err)
	}
	relBlob, err := b.ReleaseIndex.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("artistindex: marshal release index: %w", err)
	}

	xrefW := binio.NewWriter()
	xrefW.WriteU32(uint32(len(b.RecordingReleases)))
	for recID, releases := range b.RecordingReleases {
		xrefW.WriteU32(recID)
		xrefW.WriteU32(uint32(len(releases)))
		for relID := range releases {
			xrefW.WriteU32(relID)
		}
	}

	w.WriteSection(recBlob)
	w.WriteSection(relBlob)
	w.WriteSection(xrefW.Bytes())
	return w.Bytes(), nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func UnmarshalBinary(data []byte) (*Bundle, error) {
	r := binio.NewReader(data)

	recBlob, err := r.ReadSection()
	if err != nil {
		return nil, fmt.Errorf("artistindex: reading recording section: %w", err)
	}
	relBlob, err := r.ReadSection()
	if err != nil {
		return nil, fmt.Errorf("artistindex: reading release section: %w", err)
	}
	xrefBlob, err := r.ReadSection()
	if err != nil {
		return nil, fmt.Errorf("artistindex: reading xref section: %w", err)
	}

	if len(recBlob) == 0 && len(relBlob) == 0 && len(xrefBlob) == 0 {
		return &Bundle{}, nil
	}

	recordingIndex := fuzzyindex.New[[]RecordingDatum](recordingDatumCodec{})
	if err := recordingIndex.UnmarshalBinary(recBlob); err != nil {
		return nil, fmt.Errorf("artistindex: unmarshal recording index: %w", err)
	}

	releaseIndex := fuzzyindex.New[[]ReleaseIDScore](releaseIDScoreCodec{})
	if err := releaseIndex.UnmarshalBinary(relBlob); err != nil {
		return nil, fmt.Errorf("artistindex: unmarshal release index: %w", err)
	}

	xr := binio.NewReader(xrefBlob)
	n, err := xr.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("artistindex: reading xref count: %w", err)
	}
	recordingReleases := make(map[uint32]map[uint32]struct{}, n)
	for i := uint32(0); i < n; i++ {
		recID, err := xr.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("artistindex: reading xref recording id: %w", err)
		}
		numReleases, err := xr.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("artistindex: reading xref release count: %w", err)
		}
		releases := make(map[uint32]struct{}, numReleases)
		for j := uint32(0); j < numReleases; j++ {
			relID, err := xr.ReadU32()
			if err != nil {
				return nil, fmt.Errorf("artistindex: reading xref release id: %w", err)
			}
			releases[relID] = struct{}{}
		}
		recordingReleases[recID] = releases
	}

	return &Bundle{
		RecordingIndex:    recordingIndex,
		ReleaseIndex:      releaseIndex,
		RecordingReleases: recordingReleases,
	}, nil
}

// Cache loads bundles through a two-tier scheme: a bounded
// process-local in-memory LRU in front of the shared on-disk cache
// store, building on a full miss.
type Cache struct {
	db  *store.DB
	mem *lru.Cache[uint32, *Bundle]
}

// NewCache returns a Cache backed by db, with an in-memory LRU sized
// to inMemorySize entries.
func NewCache(db *store.DB, inMemorySize int) (*Cache, error) {
	if inMemorySize <= 0 {
		inMemorySize = 4096
	}
	mem, err := lru.New[uint32, *Bundle](inMemorySize)
	if err != nil {
		return nil, fmt.Errorf("artistindex: new cache: %w", err)
	}
	return &Cache{db: db, mem: mem}, nil
}

// Load returns the Bundle for artistCreditID: memory hit, else disk
// hit (populating memory), else build (populating both).
func (c *Cache) Load(ctx context.Context, artistCreditID uint32) (*Bundle, error) {
	if b, ok := c.mem.Get(artistCreditID); ok {
		return b, nil
	}

	blob, err := c.db.GetCacheBlob(ctx, artistCreditID)
	if err == nil {
		bundle, err := UnmarshalBinary(blob)
		if err != nil {
			return nil, fmt.Errorf("artistindex: load artist %d: %w", artistCreditID, err)
		}
		c.mem.Add(artistCreditID, bundle)
		return bundle, nil
	}

	bundle, err := BuildBundle(ctx, c.db, artistCreditID)
	if err != nil {
		return nil, err
	}
	blob, err = bundle.MarshalBinary()
	if err != nil {
		// Unserializable: store a null blob so the next load treats
		// this artist as the empty sentinel instead of retrying forever.
		empty := &Bundle{}
		emptyBlob, _ := empty.MarshalBinary()
		_ = c.db.PutCacheBlob(ctx, artistCreditID, emptyBlob)
		c.mem.Add(artistCreditID, empty)
		return nil, fmt.Errorf("artistindex: marshal bundle for artist %d: %w", artistCreditID, err)
	}
	if err := c.db.PutCacheBlob(ctx, artistCreditID, blob); err != nil {
		return nil, fmt.Errorf("artistindex: cache bundle for artist %d: %w", artistCreditID, err)
	}
	c.mem.Add(artistCreditID, bundle)
	return bundle, nil
}
