package artistindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayhem/fuzzyindex/internal/store"
	"github.com/mayhem/fuzzyindex/internal/testutil"
)

func newTestStore(t *testing.T) *store.DB {
	return testutil.NewStore(t)
}

func seedBeatles(t *testing.T, db *store.DB) {
	t.Helper()
	rows := []store.Row{
		{ArtistCreditID: 1, RecordingID: 10, ReleaseID: 100, RecordingName: "Come Together", ReleaseName: "Abbey Road", Score: 90},
		{ArtistCreditID: 1, RecordingID: 11, ReleaseID: 100, RecordingName: "Come Together (Remastered)", ReleaseName: "Abbey Road", Score: 80},
		{ArtistCreditID: 1, RecordingID: 12, ReleaseID: 101, RecordingName: "Something", ReleaseName: "Abbey Road (Deluxe)", Score: 70},
	}
	require.NoError(t, db.InsertRows(context.Background(), rows))
}

func TestBuildBundle_GroupsByEncodedName(t *testing.T) {
	db := newTestStore(t)
	seedBeatles(t, db)

	bundle, err := BuildBundle(context.Background(), db, 1)
	require.NoError(t, err)
	require.False(t, bundle.Empty())

	assert.Equal(t, 3, bundle.RecordingIndex.NumDocs())
	assert.Equal(t, 2, bundle.ReleaseIndex.NumDocs())

	assert.Contains(t, bundle.RecordingReleases, uint32(10))
	assert.Contains(t, bundle.RecordingReleases[10], uint32(100))
}

func TestBuildBundle_NoUsableText_IsEmptySentinel(t *testing.T) {
	db := newTestStore(t)
	require.NoError(t, db.InsertRows(context.Background(), []store.Row{
		{ArtistCreditID: 2, RecordingID: 1, ReleaseID: 1, RecordingName: "!!!", ReleaseName: "???"},
	}))

	bundle, err := BuildBundle(context.Background(), db, 2)
	require.NoError(t, err)
	assert.True(t, bundle.Empty())
}

func TestBuildBundle_NoRowsAtAll_IsEmptySentinel(t *testing.T) {
	db := newTestStore(t)
	bundle, err := BuildBundle(context.Background(), db, 999)
	require.NoError(t, err)
	assert.True(t, bundle.Empty())
}

func TestBundle_RoundTrip(t *testing.T) {
	db := newTestStore(t)
	seedBeatles(t, db)

	bundle, err := BuildBundle(context.Background(), db, 1)
	require.NoError(t, err)

	blob, err := bundle.MarshalBinary()
	require.NoError(t, err)

	restored, err := UnmarshalBinary(blob)
	require.NoError(t, err)
	require.False(t, restored.Empty())

	want, err := bundle.RecordingIndex.Search("cometogether", 0.0)
	require.NoError(t, err)
	got, err := restored.RecordingIndex.Search("cometogether", 0.0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, bundle.RecordingReleases, restored.RecordingReleases)
}

func TestEmptyBundle_RoundTrip(t *testing.T) {
	empty := &Bundle{}
	blob, err := empty.MarshalBinary()
	require.NoError(t, err)

	restored, err := UnmarshalBinary(blob)
	require.NoError(t, err)
	assert.True(t, restored.Empty())
}

func TestCache_LoadBuildsOnMissThenServesFromMemory(t *testing.T) {
	db := newTestStore(t)
	seedBeatles(t, db)

	cache, err := NewCache(db, 16)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cache.Load(ctx, 1)
	require.NoError(t, err)
	require.False(t, first.Empty())

	blob, err := db.GetCacheBlob(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	second, err := cache.Load(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCache_LoadServesFromDiskOnColdProcess(t *testing.T) {
	db := newTestStore(t)
	seedBeatles(t, db)

	warm, err := NewCache(db, 16)
	require.NoError(t, err)
	_, err = warm.Load(context.Background(), 1)
	require.NoError(t, err)

	cold, err := NewCache(db, 16)
	require.NoError(t, err)
	bundle, err := cold.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, bundle.Empty())
}

func TestCache_EmptySentinelMemoizedWithoutRebuild(t *testing.T) {
	db := newTestStore(t)
	require.NoError(t, db.InsertRows(context.Background(), []store.Row{
		{ArtistCreditID: 3, RecordingID: 1, ReleaseID: 1, RecordingName: "###", ReleaseName: "###"},
	}))

	cache, err := NewCache(db, 16)
	require.NoError(t, err)

	ctx := context.Background()
	b1, err := cache.Load(ctx, 3)
	require.NoError(t, err)
	assert.True(t, b1.Empty())

	b2, err := cache.Load(ctx, 3)
	require.NoError(t, err)
	assert.True(t, b2.Empty())
}
