// services/http.go
package services

import (
	"github.com/gofiber/fiber/v2"
)

// HTTP handlers for the operator command surface. These are the same
// code paths the scheduled jobs run; the store's uniqueness constraints
// keep a manual trigger safe to overlap with a scheduled tick.

type registerRequest struct {
	GeoName   string `json:"geo_name"`
	DiscordID string `json:"discord_id"`
}

// TriggerDailyAcquisition handles POST /s/challenge/acquire. Manual
// attempts do not arm the retry job; the operator can just retry.
func (t *TrackerService) TriggerDailyAcquisition(c *fiber.Ctx) error {
	challenge, inserted, err := t.AcquireDailyChallenge(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	if !inserted {
		return c.JSON(fiber.Map{"status": "already recorded"})
	}
	return c.JSON(fiber.Map{"status": "recorded", "token": challenge.Token})
}

// TriggerResultPoll handles POST /s/results/poll and responds with the
// results this poll inserted.
func (t *TrackerService) TriggerResultPoll(c *fiber.Ctx) error {
	newResults, err := t.PollResults(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"new_results": len(newResults), "results": newResults})
}

// TriggerRosterSync handles POST /s/roster/sync.
func (t *TrackerService) TriggerRosterSync(c *fiber.Ctx) error {
	created, err := t.SyncRoster(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"new_participants": created})
}

// TriggerSessionRefresh handles POST /s/session/refresh.
func (t *TrackerService) TriggerSessionRefresh(c *fiber.Ctx) error {
	if err := t.RefreshSession(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "refreshed"})
}

// RegisterParticipant handles POST /s/participants/register. A 409
// covers both "unknown name" and "already linked"; the original link is
// never overwritten.
func (t *TrackerService) RegisterParticipant(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.GeoName == "" || req.DiscordID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "geo_name and discord_id are required"})
	}

	linked, err := t.RegisterDiscord(req.GeoName, req.DiscordID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !linked {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "participant not found or already registered",
		})
	}
	return c.JSON(fiber.Map{"status": "registered", "geo_name": req.GeoName})
}

// ListParticipants handles GET /s/participants.
func (t *TrackerService) ListParticipants(c *fiber.Ctx) error {
	participants, err := t.Store.ListParticipants()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	type participantSummary struct {
		GeoName    string `json:"geo_name"`
		Registered bool   `json:"registered"`
	}
	res := make([]participantSummary, len(participants))
	for i, p := range participants {
		res[i] = participantSummary{GeoName: p.GeoName, Registered: p.Registered()}
	}
	return c.JSON(res)
}

// ListTodaysResults handles GET /s/results/today.
func (t *TrackerService) ListTodaysResults(c *fiber.Ctx) error {
	rows, err := t.Store.TodaysResults()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(rows)
}
