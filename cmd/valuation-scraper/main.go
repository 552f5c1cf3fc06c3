package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"property-pipeline/internal/config"
	"property-pipeline/internal/importer"
	"property-pipeline/internal/scraper"
)

func main() {
	cfg := config.Load()

	dataset, err := importer.LoadDataset(cfg.Import.DatasetPath)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	addresses := importer.Addresses(dataset)
	log.Printf("🔍 scraping valuations for %d addresses across %d lanes",
		len(addresses), cfg.Scrape.Lanes)

	sink, err := scraper.NewDatasetSink(cfg.Import.DatasetPath)
	if err != nil {
		log.Fatalf("failed to open dataset sink: %v", err)
	}

	queue := scraper.NewQueueManager(
		&scraper.HTTPSource{BaseURL: cfg.Scrape.BaseURL, Timeout: cfg.Scrape.SessionTimeout},
		sink,
		scraper.NewRateLimiter(cfg.Scrape.MinInterval),
		scraper.NewClassifier(scraper.ClassifierConfig{
			RateLimitWait: cfg.Scrape.RateLimitWait,
			ServerErrWait: cfg.Scrape.ServerErrWait,
			ConnAbortWait: cfg.Scrape.ConnAbortWait,
			BackoffBase:   cfg.Scrape.BackoffBase,
			BackoffCap:    cfg.Scrape.BackoffCap,
		}),
		cfg.Scrape.Lanes,
		cfg.Scrape.MaxAttempts,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := queue.Run(ctx, addresses)

	log.Printf("scrape finished: %d total, %d found, %d not found, %d skipped, %d failed",
		report.Total, report.Found, report.NotFound, report.Skipped, len(report.Failed))
	for _, task := range report.Failed {
		log.Printf("failed: %q (lane %d, %d attempts): %s",
			task.Address, task.Lane, task.Attempts, task.Err)
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
