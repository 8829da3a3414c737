package searchengine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mayhem/fuzzyindex/internal/apierr"
	"github.com/mayhem/fuzzyindex/internal/artistindex"
	"github.com/mayhem/fuzzyindex/internal/obslog"
	"github.com/mayhem/fuzzyindex/internal/store"
)

// ChunkSize is the default number of artists per dispatched chunk.
const ChunkSize = 500

// BuildOptions configures a bulk build run.
type BuildOptions struct {
	Workers         int
	ChunkSize       int
	TransactionSize int
	OnChunkDone     func(completed, total int)
}

// BuildReport summarizes a completed bulk build: the data behind the
// CLI's end-of-run summary table of built vs. empty-sentinel artists.
type BuildReport struct {
	ArtistsBuilt int
	ArtistsEmpty int
	ChunksRun    int
}

// RunBulkBuild enumerates artists missing a cache entry ordered by
// descending row count, partitions them into chunks, and dispatches
// the chunks to a bounded worker pool. Workers are goroutines bounded
// by a semaphore rather than OS processes; they coordinate only
// through the shared cache store, so the only blocking they do is
// store I/O. A worker failure aborts the entire run (fail-fast).
func RunBulkBuild(ctx context.Context, db *store.DB, opts BuildOptions) (*BuildReport, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}

	artists, err := db.ArtistsMissingCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("searchengine: enumerate artists missing cache: %w", err)
	}
	if len(artists) == 0 {
		return &BuildReport{}, nil
	}

	chunks := partition(artists, chunkSize)

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(opts.Workers))

	var mu sync.Mutex
	report := &BuildReport{}
	completed := 0

	for chunkIdx, chunk := range chunks {
		chunk := chunk
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			built, empty, err := buildChunk(gctx, db, chunk, opts.TransactionSize)
			if err != nil {
				return apierr.Wrap(apierr.CodeWorkerFatal, fmt.Sprintf("chunk %d failed", chunkIdx), err)
			}

			mu.Lock()
			report.ArtistsBuilt += built
			report.ArtistsEmpty += empty
			report.ChunksRun++
			completed++
			done := completed
			mu.Unlock()

			if opts.OnChunkDone != nil {
				opts.OnChunkDone(done, len(chunks))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		obslog.Error("bulk build aborted", zap.Error(err))
		return report, err
	}
	return report, nil
}

// buildChunk builds every artist in chunk and writes the resulting
// bundles to the cache store in batched transactions of up to
// transactionSize entries each.
func buildChunk(ctx context.Context, db *store.DB, chunk []store.ArtistRowCount, transactionSize int) (built, empty int, err error) {
	entries := make([]store.CacheEntry, 0, len(chunk))
	for _, a := range chunk {
		bundle, buildErr := artistindex.BuildBundle(ctx, db, a.ArtistCreditID)
		if buildErr != nil {
			return built, empty, fmt.Errorf("artist %d: %w", a.ArtistCreditID, buildErr)
		}
		blob, marshalErr := bundle.MarshalBinary()
		if marshalErr != nil {
			// Unserializable: store a null blob instead of failing
			// the whole chunk.
			emptyBundle := &artistindex.Bundle{}
			blob, _ = emptyBundle.MarshalBinary()
		}
		entries = append(entries, store.CacheEntry{ArtistCreditID: a.ArtistCreditID, Blob: blob})
		if bundle.Empty() {
			empty++
		} else {
			built++
		}
	}

	if err := db.PutCacheBlobsBatch(ctx, entries, transactionSize); err != nil {
		return built, empty, err
	}
	return built, empty, nil
}

// partition splits artists into ordered chunks of size chunkSize,
// preserving the descending-row-count build order.
func partition(artists []store.ArtistRowCount, chunkSize int) [][]store.ArtistRowCount {
	sorted := make([]store.ArtistRowCount, len(artists))
	copy(sorted, artists)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RowCount > sorted[j].RowCount
	})

	var chunks [][]store.ArtistRowCount
	for start := 0; start < len(sorted); start += chunkSize {
		end := min(start+chunkSize, len(sorted))
		chunks = append(chunks, sorted[start:end])
	}
	return chunks
}
