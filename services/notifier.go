// services/notifier.go
package services

import (
	"context"

	"geo-challenge-tracker/models"
)

// Notifier is the messaging collaborator that renders newly recorded
// results and challenge announcements for users. The tracker only ever
// hands it the newly inserted set, never the full snapshot, so results
// announced on an earlier tick are not re-announced.
type Notifier interface {
	// NotifyNewResults announces results just inserted for a challenge.
	NotifyNewResults(ctx context.Context, challenge *models.Challenge, results []models.Result) error
	// NotifyNewChallenge announces a freshly acquired daily challenge.
	NotifyNewChallenge(ctx context.Context, challenge *models.Challenge) error
}
