package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/grvbrk/vidmetrics_server/internal/ingest"
	"github.com/grvbrk/vidmetrics_server/internal/store"
	"github.com/grvbrk/vidmetrics_server/migrations"
	"github.com/joho/godotenv"
)

// Bulk loader for the metrics store. Reads a videos.json feed, reconciles it
// and commits in batches. Safe to re-run on the same feed.
func main() {
	_ = godotenv.Load()

	filePath := flag.String("file", "videos.json", "path to the feed file")
	flag.Parse()

	logger := log.New(os.Stdout, "INGEST: ", log.Ldate|log.Ltime)

	db, err := store.ConnectPGDB()
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := store.MigrateFS(db, migrations.FS, "."); err != nil {
		logger.Fatal("Migration failed:", err)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		logger.Fatalf("Failed to read %s: %v", *filePath, err)
	}

	var feed ingest.Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		logger.Fatalf("Failed to parse %s: %v", *filePath, err)
	}

	logger.Printf("Found %d videos. Starting import...", len(feed.Videos))

	reconciler := ingest.NewReconciler(store.NewPostgresMetricsStore(db), logger)

	summary, err := reconciler.Run(context.Background(), feed)
	if err != nil {
		logger.Printf("Ingestion aborted: %v", err)
	}

	logger.Printf("Imported %d videos and %d snapshots", summary.VideosCommitted, summary.SnapshotsCommitted)
	for _, note := range summary.Notes {
		logger.Println("Note:", note)
	}
	for _, fault := range summary.Failures {
		logger.Println("Skipped record:", fault.String())
	}
	if err != nil {
		os.Exit(1)
	}
}
