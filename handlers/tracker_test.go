package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"geo-challenge-tracker/models"
	"geo-challenge-tracker/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testServiceToken = "test-service-token"

func newTestApp(t *testing.T) (*fiber.App, *services.TrackerService) {
	t.Helper()
	t.Setenv("SERVICE_TOKEN", testServiceToken)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Participant{}, &models.Challenge{}, &models.Result{}))

	mux := http.NewServeMux()
	mux.HandleFunc("/challenges/daily-challenges/today", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"token": "tok1",
			"friends": [
				{"id": "a", "nick": "Alice", "totalScore": 4500},
				{"id": "b", "nick": "Bob", "totalScore": 3000}
			]
		}`))
	})
	mux.HandleFunc("/social/friends/summary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"friends": [{"userId": "a", "nick": "Alice"}, {"userId": "b", "nick": "Bob"}]}`))
	})
	mux.HandleFunc("/profiles", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user": {"id": "self", "nick": "Owner"}}`))
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	store := services.NewChallengeStore(db)
	geo := services.NewGeoguessrClientWithBase(upstream.URL, upstream.Client())
	tracker := services.NewTrackerService(store, geo, nil)
	tracker.NcfaToken = "ncfa-tok"
	require.NoError(t, tracker.RefreshSession(context.Background()))

	app := fiber.New()
	SetupTrackerRoutes(app, tracker)
	return app, tracker
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, authed bool) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testServiceToken)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestHealthzIsPublic(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestSecuredRoutesRejectMissingToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/s/participants", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/s/results/poll", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterParticipant(t *testing.T) {
	app, tracker := newTestApp(t)

	_, err := tracker.SyncRoster(context.Background())
	require.NoError(t, err)

	resp := doRequest(t, app, http.MethodPost, "/s/participants/register",
		map[string]string{"geo_name": "Alice", "discord_id": "111"}, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Already linked → conflict, link untouched.
	resp = doRequest(t, app, http.MethodPost, "/s/participants/register",
		map[string]string{"geo_name": "Alice", "discord_id": "222"}, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown name → conflict as well.
	resp = doRequest(t, app, http.MethodPost, "/s/participants/register",
		map[string]string{"geo_name": "Nobody", "discord_id": "333"}, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Missing fields → bad request.
	resp = doRequest(t, app, http.MethodPost, "/s/participants/register",
		map[string]string{"geo_name": "Alice"}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTriggerFlowEndToEnd(t *testing.T) {
	app, _ := newTestApp(t)

	// Roster sync, then challenge acquisition, then a result poll —
	// the same sequence the scheduled jobs run.
	resp := doRequest(t, app, http.MethodPost, "/s/roster/sync", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/s/challenge/acquire", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, http.MethodPost, "/s/results/poll", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pollBody struct {
		NewResults int `json:"new_results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pollBody))
	assert.Equal(t, 2, pollBody.NewResults)

	// A second acquisition of the same token is reported as a no-op.
	resp = doRequest(t, app, http.MethodPost, "/s/challenge/acquire", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var acquireBody struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&acquireBody))
	assert.Equal(t, "already recorded", acquireBody.Status)

	// A second poll over the same snapshot inserts nothing.
	resp = doRequest(t, app, http.MethodPost, "/s/results/poll", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pollBody))
	assert.Zero(t, pollBody.NewResults)

	// The scoreboard is ordered best first.
	resp = doRequest(t, app, http.MethodGet, "/s/results/today", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []services.ResultRow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 2)
	assert.Equal(t, services.ResultRow{GeoName: "Alice", Score: 4500}, rows[0])
	assert.Equal(t, services.ResultRow{GeoName: "Bob", Score: 3000}, rows[1])
}

func TestListParticipants(t *testing.T) {
	app, tracker := newTestApp(t)

	_, err := tracker.SyncRoster(context.Background())
	require.NoError(t, err)
	linked, err := tracker.RegisterDiscord("Bob", "999")
	require.NoError(t, err)
	require.True(t, linked)

	resp := doRequest(t, app, http.MethodGet, "/s/participants", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var participants []struct {
		GeoName    string `json:"geo_name"`
		Registered bool   `json:"registered"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&participants))
	require.Len(t, participants, 3)
	assert.Equal(t, "Alice", participants[0].GeoName)
	assert.False(t, participants[0].Registered)
	assert.Equal(t, "Bob", participants[1].GeoName)
	assert.True(t, participants[1].Registered)
}
