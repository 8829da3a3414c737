package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mayhem/fuzzyindex/internal/artistindex"
	"github.com/mayhem/fuzzyindex/internal/searchengine"
	"github.com/mayhem/fuzzyindex/internal/store"
	"github.com/mayhem/fuzzyindex/internal/tagprobe"
)

var (
	storePath     string
	artistIDsFlag string
	cacheSize     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tag-lookup <audio-file>",
		Short: "Resolve an audio file's ID3v2 tag against the fuzzy index",
		Long:  "Reads the TIT2/TPE1/TALB frames from an MP3's ID3v2 tag and feeds them into the search engine as a recording/release query.",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	rootCmd.Flags().StringVar(&storePath, "store", "mapping.db", "Path to the mapping/cache SQLite store")
	rootCmd.Flags().StringVar(&artistIDsFlag, "artist-ids", "", "Comma-separated candidate artist_credit_id values (required; the tag's artist name is not itself resolved to ids here)")
	rootCmd.Flags().IntVar(&cacheSize, "cache-size", 4096, "In-memory bundle cache size")
	_ = rootCmd.MarkFlagRequired("artist-ids")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	artistIDs, err := parseArtistIDs(artistIDsFlag)
	if err != nil {
		return err
	}

	tags, err := tagprobe.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read tags: %w", err)
	}
	fmt.Printf("tag: artist=%q album=%q title=%q\n", tags.Artist, tags.Album, tags.Title)

	db, err := store.Open(storePath, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}

	cache, err := artistindex.NewCache(db, cacheSize)
	if err != nil {
		return fmt.Errorf("failed to create bundle cache: %w", err)
	}

	engine := searchengine.NewEngine(cache)

	hit, err := engine.Search(context.Background(), searchengine.Request{
		ArtistIDs:     artistIDs,
		ArtistName:    tags.Artist,
		ReleaseName:   tags.Album,
		RecordingName: tags.Title,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if hit == nil {
		fmt.Println("no match found")
		return nil
	}

	fmt.Printf("artist_id=%d release_id=%d recording_id=%d confidence=%.4f\n",
		hit.ArtistID, hit.ReleaseID, hit.RecordingID, hit.Confidence)
	return nil
}

func parseArtistIDs(flag string) ([]uint32, error) {
	parts := strings.Split(flag, ",")
	ids := make([]uint32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid artist id %q: %w", p, err)
		}
		ids = append(ids, uint32(v))
	}
	if len(ids) == 0 {
		return nil, errors.New("--artist-ids must contain at least one id")
	}
	return ids, nil
}
