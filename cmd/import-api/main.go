package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"property-pipeline/internal/api"
	"property-pipeline/internal/api/handler"
	"property-pipeline/internal/config"
	"property-pipeline/internal/importer"
	"property-pipeline/internal/store"
)

func main() {
	cfg := config.Load()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	dataset, err := importer.LoadDataset(cfg.Import.DatasetPath)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	log.Printf("dataset loaded: %d listings from %s", len(dataset), cfg.Import.DatasetPath)

	coord := importer.NewCoordinator(st, st, dataset, cfg.Import.BatchSize)
	if cfg.Import.SelfBaseURL != "" {
		coord.UseContinuer(&importer.HTTPContinuer{
			BaseURL: cfg.Import.SelfBaseURL,
			Secret:  cfg.Import.SharedSecret,
		})
	} else {
		coord.ContinueInProcess(cfg.Import.BatchPause)
	}

	h := handler.NewImportHandler(coord, st, cfg.Import.SharedSecret)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(h),
	}

	go func() {
		log.Printf("🚀 import API listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
