package queryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayhem/fuzzyindex/internal/artistindex"
	"github.com/mayhem/fuzzyindex/internal/config"
	"github.com/mayhem/fuzzyindex/internal/searchengine"
	"github.com/mayhem/fuzzyindex/internal/store"
	"github.com/mayhem/fuzzyindex/internal/testutil"
)

func newTestRouter(t *testing.T) (http.Handler, *store.DB) {
	t.Helper()
	db := testutil.NewStore(t)

	require.NoError(t, db.InsertRows(context.Background(), []store.Row{
		{ArtistCreditID: 1, RecordingID: 10, ReleaseID: 100, ReleaseName: "Abbey Road", RecordingName: "Come Together", Score: 90},
	}))

	cache, err := artistindex.NewCache(db, 16)
	require.NoError(t, err)
	engine := searchengine.NewEngine(cache)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Mode = "test"
	cfg.RateLimit.Enabled = false

	return SetupRouter(cfg, db, engine), db
}

func TestHealthz_OK(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearch_ReturnsMatch(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{
		"artist_ids":     []uint32{1},
		"release_name":   "abbey road",
		"recording_name": "come together",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint32(100), resp.ReleaseID)
	assert.Equal(t, uint32(10), resp.RecordingID)
}

func TestSearch_NoMatch_Returns404(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{
		"artist_ids":     []uint32{1},
		"recording_name": "zzzzzzzzzzzz",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch_MissingRecordingName_Returns400(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{"artist_ids": []uint32{1}})
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
