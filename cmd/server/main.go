package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mayhem/fuzzyindex/internal/artistindex"
	"github.com/mayhem/fuzzyindex/internal/config"
	"github.com/mayhem/fuzzyindex/internal/obslog"
	"github.com/mayhem/fuzzyindex/internal/queryapi"
	"github.com/mayhem/fuzzyindex/internal/searchengine"
	"github.com/mayhem/fuzzyindex/internal/store"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		cfg, err = config.Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	obslog.Init(cfg.Server.Mode == "debug")
	defer obslog.Sync()
	log := obslog.Default()

	log.Info("starting fuzzy index query server",
		zap.String("store", cfg.Store.Path),
		zap.Int("port", cfg.Server.Port))

	db, err := store.Open(cfg.Store.Path, cfg.Store.MaxOpenConns, cfg.Store.MaxIdleConns)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		log.Fatal("failed to migrate store", zap.Error(err))
	}

	cache, err := artistindex.NewCache(db, cfg.Store.InMemoryCacheSize)
	if err != nil {
		log.Fatal("failed to create bundle cache", zap.Error(err))
	}

	engine := searchengine.NewEngine(cache)
	router := queryapi.SetupRouter(cfg, db, engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
