// services/reconciler.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"geo-challenge-tracker/models"
)

// ErrChallengeNotReady signals that today's challenge has not been
// acquired yet (no challenge on record, or the latest one is from an
// earlier UTC day). It is a skip signal, not an operational failure:
// the polling tick logs it and waits for the acquisition job.
var ErrChallengeNotReady = errors.New("today's challenge not yet acquired")

// SnapshotEntry is one leaderboard line from a fetched daily-challenge
// snapshot.
type SnapshotEntry struct {
	GeoID string
	Nick  string
	Score int
}

// Reconciler compares fetched snapshots against recorded results and
// persists exactly the new ones. It may be invoked concurrently (a
// scheduled tick overlapping a manual trigger); safety comes from the
// store's unique (participant, challenge) index, not from locking.
type Reconciler struct {
	store *ChallengeStore
}

func NewReconciler(store *ChallengeStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile inserts every snapshot entry that is not yet recorded for
// today's challenge and returns exactly the newly inserted results,
// with their participants attached. Entries already recorded, entries
// for unknown participants, and entries lost to a concurrent pass are
// skipped. Repeated calls over the same snapshot return an empty set.
//
// The snapshot is matched against today's challenge by the latest
// challenge's UTC date only; the token embedded in the snapshot
// response is not cross-checked.
func (r *Reconciler) Reconcile(snapshot []SnapshotEntry, now time.Time) ([]models.Result, error) {
	latest, found, err := r.store.LatestChallenge()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrChallengeNotReady
	}
	today := now.UTC().Truncate(24 * time.Hour)
	challengeDay := latest.RetrievedAt.UTC().Truncate(24 * time.Hour)
	if !challengeDay.Equal(today) {
		return nil, ErrChallengeNotReady
	}

	var inserted []models.Result
	for _, entry := range snapshot {
		participant, found, err := r.store.ParticipantByGeoID(entry.GeoID)
		if err != nil {
			return inserted, fmt.Errorf("reconcile entry %q: %w", entry.GeoID, err)
		}
		if !found {
			// Participants are only created by the roster sync; a
			// result for an unsynced player is skipped, not retried.
			log.Printf("[RECONCILE] ⚠️ Unknown participant geo_id=%s nick=%q, skipping", entry.GeoID, entry.Nick)
			continue
		}

		exists, err := r.store.ResultExists(participant.ID, latest.ID)
		if err != nil {
			return inserted, fmt.Errorf("reconcile entry %q: %w", entry.GeoID, err)
		}
		if exists {
			continue
		}

		result, err := r.store.InsertResult(participant.ID, latest.ID, entry.Score)
		if errors.Is(err, ErrDuplicateResult) {
			// A concurrent pass got there first.
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("reconcile entry %q: %w", entry.GeoID, err)
		}

		result.Participant = *participant
		inserted = append(inserted, *result)
		log.Printf("[RECONCILE] 📝 Recorded %s: %d", participant.GeoName, entry.Score)
	}

	return inserted, nil
}
