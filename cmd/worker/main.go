package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"previewd/internal/cleanup"
	"previewd/internal/config"
	"previewd/internal/project"
	"previewd/internal/queue"
	"previewd/internal/runtime"
	"previewd/internal/storage"
)

func main() {
	log.Println("Background worker starting...")

	cfg := config.Load()
	log.Printf("[worker] configuration loaded: cleanup enabled=%v, interval=%v, max age=%v",
		cfg.Cleanup.EnableCleanup, cfg.Cleanup.CleanupInterval, cfg.Cleanup.MaxPreviewAge)

	mongoClient, err := storage.GetMongoClient(context.Background(), cfg.MongoURI)
	if err != nil {
		log.Fatalf("[worker] failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.DBName)
	log.Printf("[worker] connected to database: %s", cfg.DBName)

	cleanupManager := cleanup.NewCleanupManager(cfg, db, runtime.RealOps{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Thumbnail jobs: consume captured screenshots and upload them to the
	// project store.
	projects := project.NewClient(cfg.ProjectAPIBase)
	qm, err := queue.NewQueueManager(cfg.RabbitURL)
	if err != nil {
		log.Printf("[worker] RabbitMQ unavailable, thumbnail jobs disabled: %v", err)
	} else {
		defer qm.Close()
		err := qm.ConsumeThumbnailJobs(ctx, func(job queue.ThumbnailJob) error {
			uploadCtx, uploadCancel := context.WithTimeout(ctx, 30*time.Second)
			defer uploadCancel()
			if err := projects.UploadThumbnail(uploadCtx, job.ProjectID, job.Data); err != nil {
				log.Printf("[worker] thumbnail upload failed for project %s: %v", job.ProjectID, err)
			}
			return nil
		})
		if err != nil {
			log.Printf("[worker] failed to start thumbnail consumer: %v", err)
		}
	}

	if cfg.Cleanup.EnableCleanup {
		log.Printf("[worker] starting cleanup worker with interval: %v", cfg.Cleanup.CleanupInterval)
		go func() {
			cleanupManager.RunPeriodicCleanup(ctx, cfg.Cleanup.CleanupInterval)
		}()
	} else {
		log.Println("[worker] cleanup is disabled")
	}

	log.Println("[worker] running. Press Ctrl+C to stop.")
	<-sigChan
	log.Println("[worker] received shutdown signal, stopping...")

	cancel()

	// Give in-flight work time to finish.
	time.Sleep(2 * time.Second)
	log.Println("[worker] stopped")
}
