package models

import "time"

// Result records one participant's score for one challenge. The
// composite unique index is the concurrency-safety mechanism: two
// overlapping reconciliation passes can both attempt the same pair and
// the database rejects the second. Scores are immutable once recorded;
// later revisions upstream are not applied.
type Result struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string    `gorm:"uniqueIndex:idx_results_participant_challenge;not null" json:"participant_id"`
	ChallengeID   string    `gorm:"uniqueIndex:idx_results_participant_challenge;not null" json:"challenge_id"`
	Score         int       `gorm:"not null" json:"score"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`

	Participant Participant `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`
	Challenge   Challenge   `gorm:"foreignKey:ChallengeID" json:"-"`
}
