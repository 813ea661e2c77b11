// services/scheduler.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	pollInterval       = 1 * time.Minute
	retryInterval      = 1 * time.Minute
	maxAcquireAttempts = 5
)

// StartScheduler runs the two standing jobs on a UTC scheduler: the
// daily challenge acquisition at midnight and the result poll every
// minute. The bounded retry job is created on demand when acquisition
// fails.
func (t *TrackerService) StartScheduler() error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}
	t.sched = sched

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(t.runDailyAcquisition),
	)
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(pollInterval),
		gocron.NewTask(t.runResultPoll),
	)
	if err != nil {
		return err
	}

	sched.Start()
	log.Println("[SCHEDULER] ▶️ Daily acquisition (00:00 UTC) and result polling (every 1m) scheduled")
	return nil
}

// StopScheduler shuts the scheduler down, letting running jobs finish.
func (t *TrackerService) StopScheduler() error {
	if t.sched == nil {
		return nil
	}
	return t.sched.Shutdown()
}

// runDailyAcquisition is the midnight job. A duplicate token means
// another path already recorded today's challenge and is not a
// failure; any other failure arms the bounded retry job.
func (t *TrackerService) runDailyAcquisition() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("[SCHEDULER] Getting daily challenge")
	if _, _, err := t.AcquireDailyChallenge(ctx); err != nil {
		log.Printf("[SCHEDULER] ❌ Daily acquisition failed: %v", err)
		t.startChallengeRetry()
	}
}

// runResultPoll is the per-minute polling job. A fetch failure aborts
// only this tick; the job keeps its cadence.
func (t *TrackerService) runResultPoll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	newResults, err := t.PollResults(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] ❌ Result poll failed: %v", err)
		return
	}
	if len(newResults) > 0 {
		log.Printf("[SCHEDULER] 📥 Recorded %d new result(s)", len(newResults))
	}
}

// startChallengeRetry arms the bounded acquisition retry: one attempt
// per minute, five attempts total, removed early on first success.
// Exhaustion terminates silently; the cycle restarts from idle at the
// next day's acquisition. Re-arming while a retry is live is a no-op.
func (t *TrackerService) startChallengeRetry() {
	t.retryMu.Lock()
	defer t.retryMu.Unlock()
	if t.retryLive {
		return
	}

	attempt := 0
	job, err := t.sched.NewJob(
		gocron.DurationJob(retryInterval),
		gocron.NewTask(func() {
			attempt++
			t.runChallengeRetryAttempt(attempt)
		}),
		gocron.WithLimitedRuns(maxAcquireAttempts),
	)
	if err != nil {
		log.Printf("[SCHEDULER] ❌ Could not arm challenge retry: %v", err)
		return
	}

	t.retryJobID = job.ID()
	t.retryLive = true
	log.Printf("[SCHEDULER] 🔁 Challenge retry armed (every %s, max %d attempts)", retryInterval, maxAcquireAttempts)
}

func (t *TrackerService) runChallengeRetryAttempt(attempt int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("[SCHEDULER] Retrying daily challenge (attempt %d/%d)", attempt, maxAcquireAttempts)
	_, _, err := t.AcquireDailyChallenge(ctx)
	if err == nil {
		t.stopChallengeRetry()
		return
	}

	log.Printf("[SCHEDULER] ❌ Retry attempt %d failed: %v", attempt, err)
	if attempt >= maxAcquireAttempts {
		// Best-effort only: exhaustion is logged and left unresolved
		// until tomorrow's acquisition.
		log.Printf("[SCHEDULER] ⚠️ Challenge retry exhausted after %d attempts", maxAcquireAttempts)
		t.clearChallengeRetry()
	}
}

func (t *TrackerService) stopChallengeRetry() {
	t.retryMu.Lock()
	defer t.retryMu.Unlock()
	if !t.retryLive {
		return
	}
	if err := t.sched.RemoveJob(t.retryJobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		log.Printf("[SCHEDULER] ⚠️ Could not remove retry job: %v", err)
	}
	t.retryLive = false
	log.Println("[SCHEDULER] ✅ Challenge retry succeeded, retry job removed")
}

// clearChallengeRetry marks the retry idle after the limited-run job
// exhausted itself; gocron removes the job on its own.
func (t *TrackerService) clearChallengeRetry() {
	t.retryMu.Lock()
	t.retryLive = false
	t.retryMu.Unlock()
}
