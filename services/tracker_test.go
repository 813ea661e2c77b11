package services

import (
	"context"
	"testing"
	"time"

	"geo-challenge-tracker/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	challenges []*models.Challenge
	batches    [][]models.Result
}

func (n *recordingNotifier) NotifyNewResults(_ context.Context, _ *models.Challenge, results []models.Result) error {
	n.batches = append(n.batches, results)
	return nil
}

func (n *recordingNotifier) NotifyNewChallenge(_ context.Context, challenge *models.Challenge) error {
	n.challenges = append(n.challenges, challenge)
	return nil
}

func newTestTracker(t *testing.T) (*TrackerService, *recordingNotifier) {
	t.Helper()
	store := newTestStore(t)
	client, _ := newTestGeoguessrServer(t)
	notifier := &recordingNotifier{}
	tracker := NewTrackerService(store, client, notifier)
	tracker.NcfaToken = "ncfa-tok"
	require.NoError(t, tracker.RefreshSession(context.Background()))
	return tracker, notifier
}

func TestAcquireDailyChallenge(t *testing.T) {
	tracker, notifier := newTestTracker(t)

	challenge, inserted, err := tracker.AcquireDailyChallenge(context.Background())
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "tok1", challenge.Token)
	require.Len(t, notifier.challenges, 1)

	// The token is already on record: a no-op, not a failure, and no
	// second announcement.
	challenge, inserted, err = tracker.AcquireDailyChallenge(context.Background())
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Nil(t, challenge)
	assert.Len(t, notifier.challenges, 1)
}

func TestPollResultsEndToEnd(t *testing.T) {
	tracker, notifier := newTestTracker(t)

	_, err := tracker.Store.GetOrCreateParticipant("a", "Alice")
	require.NoError(t, err)
	_, err = tracker.Store.GetOrCreateParticipant("b", "Bob")
	require.NoError(t, err)
	_, _, err = tracker.AcquireDailyChallenge(context.Background())
	require.NoError(t, err)

	newResults, err := tracker.PollResults(context.Background())
	require.NoError(t, err)
	require.Len(t, newResults, 2)
	require.Len(t, notifier.batches, 1)
	assert.Len(t, notifier.batches[0], 2)

	// Steady state: same snapshot, nothing new, nothing announced.
	newResults, err = tracker.PollResults(context.Background())
	require.NoError(t, err)
	assert.Empty(t, newResults)
	assert.Len(t, notifier.batches, 1)
}

func TestPollResultsBeforeAcquisition(t *testing.T) {
	tracker, notifier := newTestTracker(t)

	_, err := tracker.Store.GetOrCreateParticipant("a", "Alice")
	require.NoError(t, err)

	// No challenge on record: the tick is skipped quietly.
	newResults, err := tracker.PollResults(context.Background())
	require.NoError(t, err)
	assert.Empty(t, newResults)
	assert.Empty(t, notifier.batches)
}

func TestPollResultsWithoutSession(t *testing.T) {
	store := newTestStore(t)
	client, _ := newTestGeoguessrServer(t)
	tracker := NewTrackerService(store, client, nil)

	_, err := tracker.PollResults(context.Background())
	assert.Error(t, err)
}

func TestSyncRoster(t *testing.T) {
	tracker, _ := newTestTracker(t)

	created, err := tracker.SyncRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, created) // Alice, Bob, and the account owner

	// Re-syncing the unchanged roster creates nothing.
	created, err = tracker.SyncRoster(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created)

	participants, err := tracker.Store.ListParticipants()
	require.NoError(t, err)
	assert.Len(t, participants, 3)
}

func TestChallengeRetryStateMachine(t *testing.T) {
	tracker, _ := newTestTracker(t)
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	require.NoError(t, err)
	tracker.sched = sched
	t.Cleanup(func() { _ = sched.Shutdown() })

	// Idle → Running. Arming twice keeps a single retry job.
	tracker.startChallengeRetry()
	assert.True(t, tracker.retryLive)
	firstID := tracker.retryJobID
	tracker.startChallengeRetry()
	assert.Equal(t, firstID, tracker.retryJobID)

	// A successful attempt stops the retry early.
	tracker.runChallengeRetryAttempt(1)
	assert.False(t, tracker.retryLive)

	// Exhaustion (5th failed attempt) returns to idle silently; the
	// acquisition inside succeeds here, so force the exhausted path
	// directly.
	tracker.startChallengeRetry()
	assert.True(t, tracker.retryLive)
	tracker.clearChallengeRetry()
	assert.False(t, tracker.retryLive)
}
