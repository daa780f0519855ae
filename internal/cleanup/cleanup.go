// Package cleanup reclaims sandboxes left behind by abandoned previews:
// stale preview sessions past their age limit, and containers no session
// knows about.
package cleanup

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"previewd/internal/config"
	"previewd/internal/runtime"
	"previewd/internal/storage"
)

// CleanupManager handles cleanup operations for preview sandboxes
type CleanupManager struct {
	cfg *config.Config
	db  *mongo.Database
	ops runtime.Ops
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(cfg *config.Config, db *mongo.Database, ops runtime.Ops) *CleanupManager {
	return &CleanupManager{
		cfg: cfg,
		db:  db,
		ops: ops,
	}
}

// CleanupStalePreviews tears down previews that have exceeded their
// maximum age without any state change.
func (cm *CleanupManager) CleanupStalePreviews(ctx context.Context) error {
	log.Println("[cleanup] starting stale preview cleanup")

	maxAge := cm.cfg.Cleanup.MaxPreviewAge
	if maxAge == 0 {
		maxAge = 4 * time.Hour
	}

	stale, err := storage.ListStalePreviews(ctx, cm.db, time.Now().Add(-maxAge))
	if err != nil {
		return fmt.Errorf("failed to find stale previews: %w", err)
	}

	log.Printf("[cleanup] found %d stale previews", len(stale))

	for _, session := range stale {
		if err := cm.cleanupPreview(ctx, session); err != nil {
			log.Printf("[cleanup] failed to cleanup preview %s: %v", session.ProjectID, err)
			continue
		}
		log.Printf("[cleanup] successfully cleaned up preview %s", session.ProjectID)
	}

	return nil
}

// CleanupOrphanedContainers removes sandbox containers no preview session
// references.
func (cm *CleanupManager) CleanupOrphanedContainers(ctx context.Context) error {
	log.Println("[cleanup] starting orphaned container cleanup")

	containers, err := cm.ops.ListContainers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	known, err := cm.knownContainerIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get preview container IDs: %w", err)
	}

	var orphanedCount int
	for _, container := range containers {
		if !cm.isSandboxContainer(container) {
			continue
		}
		if known[container.ID] {
			continue
		}

		log.Printf("[cleanup] found orphaned container: %s", container.ID)

		if err := cm.ops.StopContainer(ctx, container.ID); err != nil {
			log.Printf("[cleanup] failed to stop orphaned container %s: %v", container.ID, err)
			continue
		}
		if err := cm.ops.RemoveContainer(ctx, container.ID); err != nil {
			log.Printf("[cleanup] failed to remove orphaned container %s: %v", container.ID, err)
			continue
		}

		orphanedCount++
		log.Printf("[cleanup] successfully cleaned up orphaned container %s", container.ID)
	}

	log.Printf("[cleanup] cleaned up %d orphaned containers", orphanedCount)
	return nil
}

// RunPeriodicCleanup runs cleanup operations periodically
func (cm *CleanupManager) RunPeriodicCleanup(ctx context.Context, interval time.Duration) {
	log.Printf("[cleanup] starting periodic cleanup with interval: %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[cleanup] stopping periodic cleanup")
			return
		case <-ticker.C:
			log.Println("[cleanup] running cleanup cycle")

			if err := cm.CleanupStalePreviews(ctx); err != nil {
				log.Printf("[cleanup] error cleaning up stale previews: %v", err)
			}

			if err := cm.CleanupOrphanedContainers(ctx); err != nil {
				log.Printf("[cleanup] error cleaning up orphaned containers: %v", err)
			}
		}
	}
}

// cleanupPreview stops and removes a preview's container and marks the
// session stopped.
func (cm *CleanupManager) cleanupPreview(ctx context.Context, session *storage.PreviewSession) error {
	log.Printf("[cleanup] cleaning up preview %s (container: %s)", session.ProjectID, session.ContainerID)

	if session.ContainerID != "" {
		exists, err := cm.ops.ContainerExists(ctx, session.ContainerID)
		if err != nil {
			log.Printf("[cleanup] failed to check container existence for %s: %v", session.ContainerID, err)
		} else if exists {
			status, err := cm.ops.GetContainerStatus(ctx, session.ContainerID)
			if err != nil {
				log.Printf("[cleanup] failed to get container status for %s: %v", session.ContainerID, err)
			} else if status == "running" {
				if err := cm.ops.StopContainer(ctx, session.ContainerID); err != nil {
					log.Printf("[cleanup] failed to stop container %s: %v", session.ContainerID, err)
				}
			}

			if err := cm.ops.RemoveContainer(ctx, session.ContainerID); err != nil {
				log.Printf("[cleanup] failed to remove container %s: %v", session.ContainerID, err)
			}
		}
	}

	session.Status = "stopped"
	if err := storage.UpsertPreview(ctx, cm.db, session); err != nil {
		return fmt.Errorf("failed to update preview status: %w", err)
	}

	return nil
}

// knownContainerIDs gets all container IDs referenced by preview sessions
func (cm *CleanupManager) knownContainerIDs(ctx context.Context) (map[string]bool, error) {
	sessions, err := storage.ListPreviews(ctx, cm.db, "")
	if err != nil {
		return nil, err
	}

	containerIDs := make(map[string]bool)
	for _, session := range sessions {
		if session.ContainerID != "" {
			containerIDs[session.ContainerID] = true
		}
	}
	return containerIDs, nil
}

// isSandboxContainer reports whether a container was created by this
// service, by its name prefix. Containers from other workloads on the
// same daemon are never touched.
func (cm *CleanupManager) isSandboxContainer(info runtime.ContainerInfo) bool {
	return strings.HasPrefix(strings.TrimPrefix(info.Name, "/"), "previewd-")
}
