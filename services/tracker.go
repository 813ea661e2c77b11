// services/tracker.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"geo-challenge-tracker/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// TrackerService ties the fetcher, store, reconciler and notifier
// together. The scheduled jobs and the manual HTTP triggers call the
// same methods; overlapping invocations are safe because every write
// lands on a store operation the database deduplicates.
type TrackerService struct {
	Store      *ChallengeStore
	Geo        *GeoguessrClient
	Reconciler *Reconciler
	Notifier   Notifier

	sessionMu sync.RWMutex
	session   *Session

	// Credentials for session refresh. NcfaToken wins when set;
	// otherwise Email/Password drive a full sign-in.
	NcfaToken string
	Email     string
	Password  string

	sched      gocron.Scheduler
	retryMu    sync.Mutex
	retryJobID uuid.UUID
	retryLive  bool
}

func NewTrackerService(store *ChallengeStore, geo *GeoguessrClient, notifier Notifier) *TrackerService {
	return &TrackerService{
		Store:      store,
		Geo:        geo,
		Reconciler: NewReconciler(store),
		Notifier:   notifier,
	}
}

// RefreshSession replaces the shared Geoguessr session, either from the
// configured token or by signing in with the configured credentials.
func (t *TrackerService) RefreshSession(ctx context.Context) error {
	var session *Session
	if t.NcfaToken != "" {
		session = SessionFromToken(t.NcfaToken)
	} else {
		var err error
		session, err = t.Geo.SignIn(ctx, t.Email, t.Password)
		if err != nil {
			return fmt.Errorf("refresh geoguessr session: %w", err)
		}
	}

	t.sessionMu.Lock()
	t.session = session
	t.sessionMu.Unlock()
	log.Println("[TRACKER] 🔑 Geoguessr session refreshed")
	return nil
}

func (t *TrackerService) currentSession() (*Session, error) {
	t.sessionMu.RLock()
	defer t.sessionMu.RUnlock()
	if t.session == nil {
		return nil, errors.New("no geoguessr session; call RefreshSession first")
	}
	return t.session, nil
}

// AcquireDailyChallenge fetches the current daily challenge token and
// records it. An already-recorded token is a no-op, not a failure.
// Returns the challenge and whether this call inserted it.
func (t *TrackerService) AcquireDailyChallenge(ctx context.Context) (*models.Challenge, bool, error) {
	token, err := t.Geo.FetchChallengeToken(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire daily challenge: %w", err)
	}

	challenge, err := t.Store.InsertChallenge(token, time.Now().UTC())
	if errors.Is(err, ErrDuplicateChallenge) {
		log.Printf("[TRACKER] Challenge token already on record, nothing to do")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	log.Printf("[TRACKER] 🌍 Recorded new daily challenge token=%s", token)
	if t.Notifier != nil {
		if nerr := t.Notifier.NotifyNewChallenge(ctx, challenge); nerr != nil {
			log.Printf("[TRACKER] ⚠️ Challenge notification failed: %v", nerr)
		}
	}
	return challenge, true, nil
}

// PollResults fetches the current snapshot, reconciles it against the
// store, and hands any newly inserted results to the notifier. When
// today's challenge is not on record yet the tick is skipped quietly.
func (t *TrackerService) PollResults(ctx context.Context) ([]models.Result, error) {
	session, err := t.currentSession()
	if err != nil {
		return nil, err
	}

	snapshot, err := t.Geo.FetchSnapshot(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("poll results: %w", err)
	}

	newResults, err := t.Reconciler.Reconcile(snapshot, time.Now())
	if errors.Is(err, ErrChallengeNotReady) {
		log.Println("[TRACKER] Today's challenge has not been retrieved yet, skipping poll")
		return []models.Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	if len(newResults) > 0 && t.Notifier != nil {
		latest, _, lerr := t.Store.LatestChallenge()
		if lerr != nil {
			return newResults, lerr
		}
		if nerr := t.Notifier.NotifyNewResults(ctx, latest, newResults); nerr != nil {
			log.Printf("[TRACKER] ⚠️ Result notification failed: %v", nerr)
		}
	}
	return newResults, nil
}

// SyncRoster pulls the friends roster (plus the account owner) and
// creates any participants seen for the first time. Existing
// participants are left untouched.
func (t *TrackerService) SyncRoster(ctx context.Context) (int, error) {
	session, err := t.currentSession()
	if err != nil {
		return 0, err
	}

	roster, err := t.Geo.FetchRoster(ctx, session)
	if err != nil {
		return 0, fmt.Errorf("sync roster: %w", err)
	}
	if self, serr := t.Geo.FetchSelf(ctx, session); serr != nil {
		log.Printf("[TRACKER] ⚠️ Could not fetch own profile: %v", serr)
	} else {
		roster = append(roster, *self)
	}

	created := 0
	for _, entry := range roster {
		_, found, err := t.Store.ParticipantByGeoID(entry.GeoID)
		if err != nil {
			return created, err
		}
		if found {
			continue
		}
		if _, err := t.Store.GetOrCreateParticipant(entry.GeoID, entry.Nick); err != nil {
			return created, err
		}
		created++
		log.Printf("[TRACKER] 👤 New participant %s (geo_id=%s)", entry.Nick, entry.GeoID)
	}
	return created, nil
}

// RegisterDiscord links a Discord account to a Geoguessr name. False
// means the name is unknown or already linked; the existing link is
// never overwritten.
func (t *TrackerService) RegisterDiscord(geoName, discordID string) (bool, error) {
	return t.Store.LinkDiscord(geoName, discordID)
}
