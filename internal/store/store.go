// Package store wraps the two on-disk tables this system shares across
// workers: the read-only "mapping" table and the read/write
// "index_cache" table. Both live in the same SQLite file, accessed
// through gorm with clause.OnConflict for atomic replace-on-write and
// a WAL-mode DSN.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mayhem/fuzzyindex/internal/apierr"
)

// mappingBusyBackoff and cacheBusyBackoff are the retry intervals for
// StoreBusy recovery: 10ms for mapping reads, 100ms for cache
// reads/writes.
const (
	mappingBusyBackoff = 10 * time.Millisecond
	cacheBusyBackoff   = 100 * time.Millisecond
)

// Row is one immutable mapping row, the builder's only input.
type Row struct {
	ArtistCreditID       uint32 `gorm:"column:artist_credit_id;index:idx_mapping_artist"`
	ArtistCreditName     string `gorm:"column:artist_credit_name"`
	ArtistCreditSortName string `gorm:"column:artist_credit_sortname"`
	ReleaseID            uint32 `gorm:"column:release_id"`
	ReleaseName          string `gorm:"column:release_name"`
	RecordingID          uint32 `gorm:"column:recording_id"`
	RecordingName        string `gorm:"column:recording_name"`
	Score                int32  `gorm:"column:score"`
}

func (Row) TableName() string { return "mapping" }

// CacheEntry is one blob in the cache store: a serialized bundle
// keyed by artist_credit_id.
type CacheEntry struct {
	ArtistCreditID uint32 `gorm:"column:artist_credit_id;primaryKey"`
	Blob           []byte `gorm:"column:blob"`
}

func (CacheEntry) TableName() string { return "index_cache" }

// ArtistRowCount is one row of the bulk-enumeration query: an artist
// missing a cache entry, plus how many mapping rows it has.
type ArtistRowCount struct {
	ArtistCreditID uint32
	RowCount       int64
}

// DB wraps a gorm connection over the shared mapping.db SQLite file.
type DB struct {
	gorm *gorm.DB
}

// Open opens (and does not yet migrate) the mapping/cache store at
// path, with WAL journal mode and foreign keys on, tuned for one
// writer plus many concurrent readers.
func Open(path string, maxOpenConns, maxIdleConns int) (*DB, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=0", path)
	g, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	sqlDB, err := g.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sql.DB: %w", err)
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(maxIdleConns)
	}

	// _busy_timeout=0 disables sqlite3's own blocking wait: StoreBusy
	// errors surface immediately to the retry loops below, which own
	// the backoff policy instead.
	return &DB{gorm: g}, nil
}

// Migrate creates the mapping and index_cache tables if absent. The
// mapping table is normally pre-populated by an external extraction
// step; AutoMigrate is a no-op against an existing table with
// compatible columns and only creates the table outright for
// fresh/test databases.
func (db *DB) Migrate() error {
	if err := db.gorm.AutoMigrate(&Row{}, &CacheEntry{}); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the underlying connection is alive, for health checks.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// InsertRows bulk-inserts mapping rows. The mapping table is normally
// populated by an external extraction step; this exists for test
// fixtures and for small-scale seeding of a local store.
func (db *DB) InsertRows(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	err := retryBusy(ctx, mappingBusyBackoff, func() error {
		return db.gorm.WithContext(ctx).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("store: insert rows: %w", err)
	}
	return nil
}

// RowsForArtist reads all mapping rows for one artist, retrying on
// StoreBusy with the 10ms backoff assigned to the mapping store.
func (db *DB) RowsForArtist(ctx context.Context, artistCreditID uint32) ([]Row, error) {
	var rows []Row
	err := retryBusy(ctx, mappingBusyBackoff, func() error {
		return db.gorm.WithContext(ctx).
			Where("artist_credit_id = ?", artistCreditID).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store: rows for artist %d: %w", artistCreditID, err)
	}
	return rows, nil
}

// ArtistsMissingCache enumerates artists with no cache entry, ordered
// by descending row count so the biggest work is scheduled earliest.
func (db *DB) ArtistsMissingCache(ctx context.Context) ([]ArtistRowCount, error) {
	var out []ArtistRowCount
	err := retryBusy(ctx, mappingBusyBackoff, func() error {
		return db.gorm.WithContext(ctx).
			Model(&Row{}).
			Select("artist_credit_id, COUNT(*) as row_count").
			Where("artist_credit_id NOT IN (?)", db.gorm.Model(&CacheEntry{}).Select("artist_credit_id")).
			Group("artist_credit_id").
			Order("row_count DESC").
			Scan(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store: artists missing cache: %w", err)
	}
	return out, nil
}

// ArtistName is one distinct artist_credit_id/name pair in the mapping
// table, the input to the artist-data flat-file writer.
type ArtistName struct {
	ArtistCreditID   uint32
	ArtistCreditName string
}

// DistinctArtists enumerates every artist_credit_id present in the
// mapping table along with its display name, for the artist-data
// flat-file writer.
func (db *DB) DistinctArtists(ctx context.Context) ([]ArtistName, error) {
	var out []ArtistName
	err := retryBusy(ctx, mappingBusyBackoff, func() error {
		return db.gorm.WithContext(ctx).
			Model(&Row{}).
			Distinct("artist_credit_id", "artist_credit_name").
			Scan(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store: distinct artists: %w", err)
	}
	return out, nil
}

// GetCacheBlob reads the cached blob for one artist, retrying on
// StoreBusy with the 100ms backoff assigned to the cache store.
// Returns apierr.NotFound on a cache miss, distinguishing "build one"
// from a real failure.
func (db *DB) GetCacheBlob(ctx context.Context, artistCreditID uint32) ([]byte, error) {
	var entry CacheEntry
	err := retryBusy(ctx, cacheBusyBackoff, func() error {
		err := db.gorm.WithContext(ctx).
			Where("artist_credit_id = ?", artistCreditID).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errStop{apierr.NotFound}
		}
		return err
	})
	if err != nil {
		var s errStop
		if errors.As(err, &s) {
			return nil, s.err
		}
		return nil, fmt.Errorf("store: get cache blob for artist %d: %w", artistCreditID, err)
	}
	return entry.Blob, nil
}

// PutCacheBlob atomically replaces the cached blob for one artist.
func (db *DB) PutCacheBlob(ctx context.Context, artistCreditID uint32, blob []byte) error {
	entry := CacheEntry{ArtistCreditID: artistCreditID, Blob: blob}
	err := retryBusy(ctx, cacheBusyBackoff, func() error {
		return db.gorm.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "artist_credit_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"blob"}),
		}).Create(&entry).Error
	})
	if err != nil {
		return fmt.Errorf("store: put cache blob for artist %d: %w", artistCreditID, err)
	}
	return nil
}

// PutCacheBlobsBatch writes many cache entries in transactions of up
// to transactionSize entries per commit, to amortize store overhead.
func (db *DB) PutCacheBlobsBatch(ctx context.Context, entries []CacheEntry, transactionSize int) error {
	if transactionSize <= 0 {
		transactionSize = 500
	}
	for start := 0; start < len(entries); start += transactionSize {
		end := min(start+transactionSize, len(entries))
		chunk := entries[start:end]
		err := retryBusy(ctx, cacheBusyBackoff, func() error {
			return db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "artist_credit_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"blob"}),
				}).Create(&chunk).Error
			})
		})
		if err != nil {
			return fmt.Errorf("store: put cache blobs batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// errStop wraps a non-retryable error so retryBusy's retry loop
// returns it verbatim instead of treating it as another busy signal.
type errStop struct{ err error }

func (e errStop) Error() string { return e.err.Error() }
func (e errStop) Unwrap() error { return e.err }

// retryBusy runs fn, retrying forever with a fixed backoff whenever
// the underlying error is SQLITE_BUSY, and returning immediately on
// any other error (including errStop, which marks a deliberate
// non-busy short-circuit like a cache miss).
func retryBusy(ctx context.Context, backoff time.Duration, fn func() error) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		var stop errStop
		if errors.As(err, &stop) {
			return err
		}
		if !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// isBusy classifies a driver error as SQLITE_BUSY / SQLITE_LOCKED,
// the transient contention that maps to StoreBusy.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
