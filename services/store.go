// services/store.go
package services

import (
	"errors"
	"fmt"
	"time"

	"geo-challenge-tracker/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sentinel errors for the benign duplicate cases. Callers treat both as
// "already recorded" no-ops, never as operational failures.
var (
	ErrDuplicateChallenge = errors.New("challenge token already recorded")
	ErrDuplicateResult    = errors.New("result already recorded for participant and challenge")
)

// ChallengeStore owns all persistence for participants, challenges and
// results. Uniqueness is enforced by the database indexes, not by
// application logic, so concurrent callers cannot both insert the same
// row. The *gorm.DB must be opened with TranslateError enabled so
// constraint violations surface as gorm.ErrDuplicatedKey.
type ChallengeStore struct {
	DB *gorm.DB
}

func NewChallengeStore(db *gorm.DB) *ChallengeStore {
	return &ChallengeStore{DB: db}
}

// ParticipantByGeoID looks a participant up by their Geoguessr user ID.
// The bool reports whether the participant exists; "not found" is not
// an error.
func (s *ChallengeStore) ParticipantByGeoID(geoID string) (*models.Participant, bool, error) {
	var p models.Participant
	err := s.DB.Where("geo_id = ?", geoID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup participant by geo_id %q: %w", geoID, err)
	}
	return &p, true, nil
}

// GetOrCreateParticipant returns the participant with the given Geoguessr
// ID, creating them on first sighting. Existing rows are returned
// unchanged: GeoName is not overwritten on later syncs. A create that
// loses a race with a concurrent sync falls back to re-fetching the row
// the winner inserted.
func (s *ChallengeStore) GetOrCreateParticipant(geoID, geoName string) (*models.Participant, error) {
	if p, found, err := s.ParticipantByGeoID(geoID); err != nil {
		return nil, err
	} else if found {
		return p, nil
	}

	p := models.Participant{
		ID:      uuid.NewString(),
		GeoID:   geoID,
		GeoName: geoName,
	}
	err := s.DB.Create(&p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, found, ferr := s.ParticipantByGeoID(geoID)
		if ferr != nil {
			return nil, ferr
		}
		if !found {
			return nil, fmt.Errorf("participant %q vanished after duplicate insert", geoID)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create participant %q: %w", geoID, err)
	}
	return &p, nil
}

// LatestChallenge returns the most recently retrieved challenge, i.e.
// "today's challenge" when its RetrievedAt date is the current UTC day.
func (s *ChallengeStore) LatestChallenge() (*models.Challenge, bool, error) {
	var c models.Challenge
	err := s.DB.Order("retrieved_at DESC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup latest challenge: %w", err)
	}
	return &c, true, nil
}

// InsertChallenge records a newly acquired daily challenge token.
// A token that is already on record fails with ErrDuplicateChallenge;
// the acquisition job treats that as "someone beat us to it".
func (s *ChallengeStore) InsertChallenge(token string, retrievedAt time.Time) (*models.Challenge, error) {
	c := models.Challenge{
		ID:          uuid.NewString(),
		Token:       token,
		RetrievedAt: retrievedAt,
	}
	err := s.DB.Create(&c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("insert challenge %q: %w", token, err)
	}
	return &c, nil
}

// ResultExists reports whether a result is already recorded for the
// participant/challenge pair.
func (s *ChallengeStore) ResultExists(participantID, challengeID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Result{}).
		Where("participant_id = ? AND challenge_id = ?", participantID, challengeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check result exists: %w", err)
	}
	return count > 0, nil
}

// InsertResult records a score for the participant/challenge pair. The
// composite unique index rejects a second insert for the same pair;
// that case surfaces as ErrDuplicateResult and is benign.
func (s *ChallengeStore) InsertResult(participantID, challengeID string, score int) (*models.Result, error) {
	r := models.Result{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		ChallengeID:   challengeID,
		Score:         score,
	}
	err := s.DB.Create(&r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateResult
	}
	if err != nil {
		return nil, fmt.Errorf("insert result for participant %s: %w", participantID, err)
	}
	return &r, nil
}

// LinkDiscord binds a Discord account to the participant with the given
// Geoguessr name. The binding is one-way: it succeeds only when the
// participant exists and has no Discord ID yet. Every other case —
// unknown name, already linked — is a false no-op, and an existing link
// is never overwritten. The guard lives in the UPDATE's WHERE clause so
// two concurrent registrations cannot both win.
func (s *ChallengeStore) LinkDiscord(geoName, discordID string) (bool, error) {
	res := s.DB.Model(&models.Participant{}).
		Where("geo_name = ? AND discord_id IS NULL", geoName).
		Update("discord_id", discordID)
	if res.Error != nil {
		return false, fmt.Errorf("link discord id to %q: %w", geoName, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListParticipants returns all participants ordered by Geoguessr name.
func (s *ChallengeStore) ListParticipants() ([]models.Participant, error) {
	var participants []models.Participant
	if err := s.DB.Order("geo_name ASC").Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// ResultRow is one scoreboard line for today's challenge.
type ResultRow struct {
	GeoName string `json:"geo_name"`
	Score   int    `json:"score"`
}

// TodaysResults returns the scoreboard for the latest challenge, best
// score first. An empty slice when no challenge is on record yet.
func (s *ChallengeStore) TodaysResults() ([]ResultRow, error) {
	latest, found, err := s.LatestChallenge()
	if err != nil {
		return nil, err
	}
	if !found {
		return []ResultRow{}, nil
	}

	var rows []ResultRow
	err = s.DB.Model(&models.Result{}).
		Select("participants.geo_name AS geo_name, results.score AS score").
		Joins("JOIN participants ON participants.id = results.participant_id").
		Where("results.challenge_id = ?", latest.ID).
		Order("results.score DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list today's results: %w", err)
	}
	if rows == nil {
		rows = []ResultRow{}
	}
	return rows, nil
}
