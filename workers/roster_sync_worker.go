// workers/roster_sync_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"geo-challenge-tracker/services"
)

// RosterSyncWorker keeps the local participant table in step with the
// Geoguessr friends roster. New friends are created on first sighting;
// existing participants are never modified or deleted by the sync.
type RosterSyncWorker struct {
	tracker  *services.TrackerService
	interval time.Duration
}

func NewRosterSyncWorker(tracker *services.TrackerService, interval time.Duration) *RosterSyncWorker {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &RosterSyncWorker{
		tracker:  tracker,
		interval: interval,
	}
}

func (w *RosterSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Roster Sync Worker (geoguessr friends → participants)…")
	go w.run(ctx)
}

func (w *RosterSyncWorker) run(ctx context.Context) {
	// Initial sync so the first poll doesn't skip every snapshot entry
	// as unknown.
	if err := w.syncOnce(ctx); err != nil {
		log.Printf("⚠️ Initial roster sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncOnce(ctx); err != nil {
				log.Printf("❌ Roster sync failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Roster Sync Worker stopped")
			return
		}
	}
}

func (w *RosterSyncWorker) syncOnce(ctx context.Context) error {
	created, err := w.tracker.SyncRoster(ctx)
	if err != nil {
		return err
	}
	if created > 0 {
		log.Printf("[SYNC] ✅ Roster sync added %d participant(s)", created)
	}
	return nil
}
