// Package testutil provides shared test fixtures for the packages that
// sit on top of the mapping/cache store: one place that owns "spin up
// a throwaway store" instead of every _test.go file reinventing it.
package testutil

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mayhem/fuzzyindex/internal/store"
)

// NewStore opens a fresh, migrated mapping/cache store backed by a
// temp-dir SQLite file and registers its cleanup with t.
func NewStore(t *testing.T) *store.DB {
	t.Helper()

	db, err := store.Open(t.TempDir()+"/mapping.db", 0, 0)
	require.NoError(t, err, "failed to open store")

	require.NoError(t, db.Migrate(), "failed to migrate store")

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// NewGinTestEngine returns a bare gin.Engine in test mode, for
// handler-level tests that don't need the full SetupRouter wiring.
func NewGinTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
