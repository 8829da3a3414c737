package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"go.uber.org/zap"

	"github.com/mayhem/fuzzyindex/internal/artistindex"
	"github.com/mayhem/fuzzyindex/internal/obslog"
	"github.com/mayhem/fuzzyindex/internal/searchengine"
	"github.com/mayhem/fuzzyindex/internal/store"
)

var (
	workers   int
	debug     bool
	chunkSize int
	txnSize   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "build-indexes <index_dir> <num_procs>",
		Short: "Build per-artist fuzzy search indexes",
		Long:  "Scans a mapping.db for artists missing a cache entry and builds their recording/release fuzzy indexes, writing the results into the same database's index_cache table.",
		Args:  cobra.ExactArgs(2),
		RunE:  run,
	}

	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", searchengine.ChunkSize, "Artists per dispatched chunk")
	rootCmd.Flags().IntVar(&txnSize, "transaction-size", 500, "Cache entries per commit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	indexDir := args[0]
	numProcs, err := strconv.Atoi(args[1])
	if err != nil || numProcs <= 0 {
		return fmt.Errorf("num_procs must be a positive integer, got %q", args[1])
	}
	workers = numProcs

	obslog.Init(debug)
	defer obslog.Sync()
	log := obslog.Default()

	dbPath := indexDir + string(os.PathSeparator) + "mapping.db"
	log.Info("opening mapping store", zap.String("path", dbPath))

	db, err := store.Open(dbPath, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}

	ctx := context.Background()

	missing, err := db.ArtistsMissingCache(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate artists missing cache: %w", err)
	}
	effectiveChunkSize := chunkSize
	if effectiveChunkSize <= 0 {
		effectiveChunkSize = searchengine.ChunkSize
	}
	totalChunks := (len(missing) + effectiveChunkSize - 1) / effectiveChunkSize

	progress := mpb.New(mpb.WithWidth(60), mpb.WithRefreshRate(100*time.Millisecond))
	var bar *mpb.Bar
	if totalChunks > 0 {
		bar = progress.AddBar(int64(totalChunks),
			mpb.PrependDecorators(
				decor.Name("Building: ", decor.WC{W: 10, C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
		)
	}

	report, err := searchengine.RunBulkBuild(ctx, db, searchengine.BuildOptions{
		Workers:         workers,
		ChunkSize:       chunkSize,
		TransactionSize: txnSize,
		OnChunkDone: func(completed, total int) {
			if bar != nil {
				bar.IncrBy(1)
			}
		},
	})
	progress.Wait()

	if err != nil {
		log.Error("bulk build aborted", zap.Error(err))
		return fmt.Errorf("bulk build failed: %w", err)
	}

	printSummary(report)

	artistDataPath := indexDir + string(os.PathSeparator) + "artist_data.txt"
	stupidArtistDataPath := indexDir + string(os.PathSeparator) + "stupid_artist_data.txt"
	if err := artistindex.WriteArtistDataFiles(ctx, db, artistDataPath, stupidArtistDataPath); err != nil {
		log.Warn("failed to write artist-data flat files", zap.Error(err))
	}

	return nil
}

func printSummary(report *searchengine.BuildReport) {
	data := [][]string{
		{"Metric", "Count"},
		{"Artists built", fmt.Sprintf("%d", report.ArtistsBuilt)},
		{"Empty sentinels", fmt.Sprintf("%d", report.ArtistsEmpty)},
		{"Chunks run", fmt.Sprintf("%d", report.ChunksRun)},
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header(data[0])
	_ = table.Bulk(data[1:])
	_ = table.Render()
}
