package searchengine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayhem/fuzzyindex/internal/store"
	"github.com/mayhem/fuzzyindex/internal/testutil"
)

func newBuilderStore(t *testing.T, rows []store.Row) *store.DB {
	t.Helper()
	db := testutil.NewStore(t)
	require.NoError(t, db.InsertRows(context.Background(), rows))
	return db
}

func seedArtists(n int, rowsPerArtist int) []store.Row {
	var rows []store.Row
	id := uint32(1)
	for a := uint32(1); a <= uint32(n); a++ {
		for r := 0; r < rowsPerArtist; r++ {
			rows = append(rows, store.Row{
				ArtistCreditID: a,
				RecordingID:    id,
				ReleaseID:      id,
				RecordingName:  "Track Name",
				ReleaseName:    "Album Name",
				Score:          int32(id),
			})
			id++
		}
	}
	return rows
}

func TestRunBulkBuild_BuildsEveryMissingArtist(t *testing.T) {
	db := newBuilderStore(t, seedArtists(5, 2))

	report, err := RunBulkBuild(context.Background(), db, BuildOptions{Workers: 2, ChunkSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, report.ArtistsBuilt)
	assert.Equal(t, 0, report.ArtistsEmpty)
	assert.Equal(t, 3, report.ChunksRun)

	missing, err := db.ArtistsMissingCache(context.Background())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRunBulkBuild_NoMissingArtists_NoOp(t *testing.T) {
	db := newBuilderStore(t, nil)

	report, err := RunBulkBuild(context.Background(), db, BuildOptions{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ArtistsBuilt)
	assert.Equal(t, 0, report.ChunksRun)
}

func TestRunBulkBuild_TracksEmptySentinelArtists(t *testing.T) {
	rows := []store.Row{
		{ArtistCreditID: 1, RecordingID: 1, ReleaseID: 1, RecordingName: "!!!", ReleaseName: "???"},
		{ArtistCreditID: 2, RecordingID: 2, ReleaseID: 2, RecordingName: "Real Track", ReleaseName: "Real Album"},
	}
	db := newBuilderStore(t, rows)

	report, err := RunBulkBuild(context.Background(), db, BuildOptions{Workers: 1, ChunkSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ArtistsBuilt)
	assert.Equal(t, 1, report.ArtistsEmpty)
}

func TestRunBulkBuild_ReportsProgressPerChunk(t *testing.T) {
	db := newBuilderStore(t, seedArtists(10, 1))

	var mu sync.Mutex
	var completedCalls []int
	_, err := RunBulkBuild(context.Background(), db, BuildOptions{
		Workers:   3,
		ChunkSize: 2,
		OnChunkDone: func(completed, total int) {
			mu.Lock()
			completedCalls = append(completedCalls, completed)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.Len(t, completedCalls, 5)
}

func TestPartition_OrdersByRowCountDescAndChunks(t *testing.T) {
	artists := []store.ArtistRowCount{
		{ArtistCreditID: 1, RowCount: 3},
		{ArtistCreditID: 2, RowCount: 10},
		{ArtistCreditID: 3, RowCount: 1},
	}
	chunks := partition(artists, 2)
	require.Len(t, chunks, 2)
	assert.Equal(t, uint32(2), chunks[0][0].ArtistCreditID)
	assert.Equal(t, uint32(1), chunks[0][1].ArtistCreditID)
	assert.Equal(t, uint32(3), chunks[1][0].ArtistCreditID)
}
