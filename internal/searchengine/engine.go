// Package searchengine resolves artist/release/recording queries
// against the per-artist bundle cache, and drives the parallel bulk
// builder that precomputes every artist's cache entry ahead of query
// time.
package searchengine

import (
	"context"
	"sort"

	"github.com/mayhem/fuzzyindex/internal/artistindex"
	"github.com/mayhem/fuzzyindex/internal/normalize"
)

// RecordingConfidence and ReleaseConfidence are the minimum confidence
// thresholds applied to recording and release search results.
const (
	RecordingConfidence = 0.5
	ReleaseConfidence   = 0.5
)

// CombineTopN bounds how many top recording/release hits the combine
// step cross-multiplies.
const CombineTopN = 3

// Request is one query: a set of candidate artists plus the free-text
// artist/release/recording names to resolve against them.
type Request struct {
	ArtistIDs     []uint32
	ArtistName    string
	ReleaseName   string
	RecordingName string
}

// Hit is the engine's single best match for a Request.
type Hit struct {
	ArtistID    uint32
	ReleaseID   uint32
	RecordingID uint32
	Confidence  float64
}

// Engine resolves queries through an artistindex.Cache.
type Engine struct {
	cache *artistindex.Cache
}

// NewEngine returns an Engine backed by cache.
func NewEngine(cache *artistindex.Cache) *Engine {
	return &Engine{cache: cache}
}

type expandedRecording struct {
	confidence  float64
	score       int32
	recordingID uint32
	releaseID   uint32
}

type expandedRelease struct {
	confidence float64
	score      int32
	releaseID  uint32
}

// Search resolves req against the candidate artists in order: the
// first artist to yield a hit wins.
func (e *Engine) Search(ctx context.Context, req Request) (*Hit, error) {
	encodedRecording, _ := normalize.Encode(req.RecordingName)
	encodedRelease, _ := normalize.Encode(req.ReleaseName)

	for _, artistID := range req.ArtistIDs {
		bundle, err := e.cache.Load(ctx, artistID)
		if err != nil {
			return nil, err
		}
		if bundle.Empty() {
			continue
		}

		recHits, err := searchRecordings(bundle, encodedRecording)
		if err != nil {
			return nil, err
		}

		if encodedRelease == "" {
			if len(recHits) == 0 {
				continue
			}
			return &Hit{
				ArtistID:    artistID,
				ReleaseID:   recHits[0].releaseID,
				RecordingID: recHits[0].recordingID,
				Confidence:  recHits[0].confidence,
			}, nil
		}

		relHits, err := searchReleases(bundle, encodedRelease)
		if err != nil {
			return nil, err
		}

		if hit, ok := combine(artistID, bundle, recHits, relHits); ok {
			return hit, nil
		}
	}

	return nil, nil
}

func searchRecordings(bundle *artistindex.Bundle, encodedRecording string) ([]expandedRecording, error) {
	results, err := bundle.RecordingIndex.Search(encodedRecording, RecordingConfidence)
	if err != nil {
		return nil, err
	}

	var expanded []expandedRecording
	for _, r := range results {
		for _, d := range r.Payload {
			expanded = append(expanded, expandedRecording{
				confidence:  r.Confidence,
				score:       d.Score,
				recordingID: d.RecordingID,
				releaseID:   d.ReleaseID,
			})
		}
	}
	// Sort by (-confidence, score) ascending: highest confidence first,
	// lowest score breaking ties.
	sort.SliceStable(expanded, func(i, j int) bool {
		if expanded[i].confidence != expanded[j].confidence {
			return expanded[i].confidence > expanded[j].confidence
		}
		return expanded[i].score < expanded[j].score
	})
	return expanded, nil
}

func searchReleases(bundle *artistindex.Bundle, encodedRelease string) ([]expandedRelease, error) {
	results, err := bundle.ReleaseIndex.Search(encodedRelease, ReleaseConfidence)
	if err != nil {
		return nil, err
	}

	var expanded []expandedRelease
	for _, r := range results {
		for _, d := range r.Payload {
			expanded = append(expanded, expandedRelease{
				confidence: r.Confidence,
				score:      d.Score,
				releaseID:  d.ReleaseID,
			})
		}
	}
	sort.SliceStable(expanded, func(i, j int) bool {
		if expanded[i].confidence != expanded[j].confidence {
			return expanded[i].confidence > expanded[j].confidence
		}
		return expanded[i].score < expanded[j].score
	})
	return expanded, nil
}

// combine cross-multiplies the top CombineTopN recording and release
// hits and returns the first pair whose recording_id is a gated
// cross-reference. This is the first successfully gated pair, not the
// highest-combined-confidence one.
func combine(artistID uint32, bundle *artistindex.Bundle, recHits []expandedRecording, relHits []expandedRelease) (*Hit, bool) {
	recTop := recHits
	if len(recTop) > CombineTopN {
		recTop = recTop[:CombineTopN]
	}
	relTop := relHits
	if len(relTop) > CombineTopN {
		relTop = relTop[:CombineTopN]
	}

	for _, rec := range recTop {
		if _, gated := bundle.RecordingReleases[rec.recordingID]; !gated {
			continue
		}
		for _, rel := range relTop {
			return &Hit{
				ArtistID:    artistID,
				RecordingID: rec.recordingID,
				ReleaseID:   rel.releaseID,
				Confidence:  (rec.confidence + rel.confidence) / 2,
			}, true
		}
	}
	return nil, false
}
