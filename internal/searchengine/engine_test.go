package searchengine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayhem/fuzzyindex/internal/artistindex"
	"github.com/mayhem/fuzzyindex/internal/store"
)

func newEngine(t *testing.T, rows []store.Row) *Engine {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mapping.db"), 0, 0)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.InsertRows(context.Background(), rows))

	cache, err := artistindex.NewCache(db, 16)
	require.NoError(t, err)
	return NewEngine(cache)
}

// A single row, exact-text query resolves with high confidence.
func TestSearch_ExactMatch(t *testing.T) {
	engine := newEngine(t, []store.Row{
		{ArtistCreditID: 1, RecordingID: 10, ReleaseID: 100, ArtistCreditName: "The Beatles", ReleaseName: "Abbey Road", RecordingName: "Come Together", Score: 90},
	})

	hit, err := engine.Search(context.Background(), Request{
		ArtistIDs:     []uint32{1},
		ArtistName:    "beatles",
		ReleaseName:   "abbey road",
		RecordingName: "come together",
	})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, uint32(100), hit.ReleaseID)
	assert.Equal(t, uint32(10), hit.RecordingID)
	assert.GreaterOrEqual(t, hit.Confidence, 0.95)
}

// S2: a second recording with a longer, non-exact encoded name and a
// lower score; the exact match is still preferred.
func TestSearch_PrefersExactOverRemaster(t *testing.T) {
	engine := newEngine(t, []store.Row{
		{ArtistCreditID: 1, RecordingID: 10, ReleaseID: 100, ReleaseName: "Abbey Road", RecordingName: "Come Together", Score: 90},
		{ArtistCreditID: 1, RecordingID: 11, ReleaseID: 100, ReleaseName: "Abbey Road", RecordingName: "Come Together (Remastered)", Score: 80},
	})

	hit, err := engine.Search(context.Background(), Request{
		ArtistIDs:     []uint32{1},
		ReleaseName:   "abbey road",
		RecordingName: "come together",
	})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, uint32(10), hit.RecordingID)
}

func TestSearch_EmptyReleaseName_ReturnsTopRecordingHit(t *testing.T) {
	engine := newEngine(t, []store.Row{
		{ArtistCreditID: 1, RecordingID: 10, ReleaseID: 100, ReleaseName: "Abbey Road", RecordingName: "Come Together", Score: 90},
	})

	hit, err := engine.Search(context.Background(), Request{
		ArtistIDs:     []uint32{1},
		RecordingName: "come together",
	})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, uint32(100), hit.ReleaseID)
	assert.Equal(t, uint32(10), hit.RecordingID)
}

func TestSearch_NoArtistYieldsHit_ReturnsNil(t *testing.T) {
	engine := newEngine(t, []store.Row{
		{ArtistCreditID: 1, RecordingID: 10, ReleaseID: 100, ReleaseName: "Abbey Road", RecordingName: "Come Together", Score: 90},
	})

	hit, err := engine.Search(context.Background(), Request{
		ArtistIDs:     []uint32{1},
		RecordingName: "zzzzzzzzzzzz",
		ReleaseName:   "zzzzzzzzzzzz",
	})
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestSearch_FallsThroughToSecondArtist(t *testing.T) {
	engine := newEngine(t, []store.Row{
		{ArtistCreditID: 1, RecordingID: 1, ReleaseID: 1, RecordingName: "!!!", ReleaseName: "!!!"},
		{ArtistCreditID: 2, RecordingID: 20, ReleaseID: 200, ReleaseName: "Abbey Road", RecordingName: "Come Together", Score: 90},
	})

	hit, err := engine.Search(context.Background(), Request{
		ArtistIDs:     []uint32{1, 2},
		ReleaseName:   "abbey road",
		RecordingName: "come together",
	})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, uint32(2), hit.ArtistID)
	assert.Equal(t, uint32(20), hit.RecordingID)
}

func TestSearch_DistinctArtistsDoNotCrossContaminate(t *testing.T) {
	engine := newEngine(t, []store.Row{
		{ArtistCreditID: 1, RecordingID: 10, ReleaseID: 100, RecordingName: "Come Together", ReleaseName: "Abbey Road", Score: 90},
		{ArtistCreditID: 2, RecordingID: 20, ReleaseID: 200, RecordingName: "Come Together", ReleaseName: "Abbey Road", Score: 90},
	})

	hit, err := engine.Search(context.Background(), Request{
		ArtistIDs:     []uint32{2},
		RecordingName: "come together",
		ReleaseName:   "abbey road",
	})
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, uint32(2), hit.ArtistID)
	assert.Equal(t, uint32(20), hit.RecordingID)
	assert.Equal(t, uint32(200), hit.ReleaseID)
}
