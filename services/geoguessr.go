// services/geoguessr.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"geo-challenge-tracker/utils"
)

const geoguessrBaseURL = "https://www.geoguessr.com/api/v3"

// Session is an authenticated Geoguessr session: the value of the
// _ncfa cookie issued at sign-in. It is passed explicitly into every
// authenticated fetch; there is no shared module-level session.
type Session struct {
	ncfa string
}

// SessionFromToken wraps an externally obtained _ncfa token (e.g. from
// the environment) in a Session.
func SessionFromToken(token string) *Session {
	return &Session{ncfa: token}
}

// GeoguessrClient fetches challenge tokens, leaderboard snapshots and
// the friends roster from the Geoguessr API.
type GeoguessrClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGeoguessrClient builds a client against the production API using
// the shared short-timeout HTTP client, so a hung fetch cannot starve
// the next scheduled tick.
func NewGeoguessrClient() *GeoguessrClient {
	return &GeoguessrClient{
		baseURL:    geoguessrBaseURL,
		httpClient: utils.HTTPClient,
	}
}

// NewGeoguessrClientWithBase is used by tests to point the client at a
// local server.
func NewGeoguessrClientWithBase(baseURL string, httpClient *http.Client) *GeoguessrClient {
	return &GeoguessrClient{baseURL: baseURL, httpClient: httpClient}
}

// RosterEntry is one friend (or the account owner) from the roster.
type RosterEntry struct {
	GeoID string
	Nick  string
}

type dailyChallengeResponse struct {
	Token   string `json:"token"`
	Friends []struct {
		ID         string `json:"id"`
		Nick       string `json:"nick"`
		TotalScore int    `json:"totalScore"`
	} `json:"friends"`
}

// SignIn authenticates against the Geoguessr accounts endpoint and
// returns a session built from the _ncfa cookie in the response.
func (g *GeoguessrClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sign-in payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/accounts/signin", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign-in request failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sign-in returned status %d", resp.StatusCode)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "_ncfa" && cookie.Value != "" {
			return &Session{ncfa: cookie.Value}, nil
		}
	}
	return nil, fmt.Errorf("sign-in response carried no _ncfa cookie")
}

// FetchChallengeToken retrieves the token identifying the current
// daily challenge. The endpoint is public; no session required.
func (g *GeoguessrClient) FetchChallengeToken(ctx context.Context) (string, error) {
	var body dailyChallengeResponse
	if err := g.getJSON(ctx, "/challenges/daily-challenges/today", nil, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", fmt.Errorf("daily challenge response carried no token")
	}
	return body.Token, nil
}

// FetchSnapshot retrieves the current friends leaderboard for the
// active daily challenge.
func (g *GeoguessrClient) FetchSnapshot(ctx context.Context, session *Session) ([]SnapshotEntry, error) {
	var body dailyChallengeResponse
	if err := g.getJSON(ctx, "/challenges/daily-challenges/today", session, &body); err != nil {
		return nil, err
	}

	entries := make([]SnapshotEntry, 0, len(body.Friends))
	for _, friend := range body.Friends {
		entries = append(entries, SnapshotEntry{
			GeoID: friend.ID,
			Nick:  friend.Nick,
			Score: friend.TotalScore,
		})
	}
	return entries, nil
}

// FetchRoster retrieves the authenticated account's friends list.
func (g *GeoguessrClient) FetchRoster(ctx context.Context, session *Session) ([]RosterEntry, error) {
	var body struct {
		Friends []struct {
			UserID string `json:"userId"`
			Nick   string `json:"nick"`
		} `json:"friends"`
	}
	if err := g.getJSON(ctx, "/social/friends/summary", session, &body); err != nil {
		return nil, err
	}

	roster := make([]RosterEntry, 0, len(body.Friends))
	for _, friend := range body.Friends {
		roster = append(roster, RosterEntry{GeoID: friend.UserID, Nick: friend.Nick})
	}
	return roster, nil
}

// FetchSelf retrieves the authenticated account's own profile, so the
// owner shows up on the roster alongside their friends.
func (g *GeoguessrClient) FetchSelf(ctx context.Context, session *Session) (*RosterEntry, error) {
	var body struct {
		User struct {
			ID   string `json:"id"`
			Nick string `json:"nick"`
		} `json:"user"`
	}
	if err := g.getJSON(ctx, "/profiles", session, &body); err != nil {
		return nil, err
	}
	if body.User.ID == "" {
		return nil, fmt.Errorf("profile response carried no user id")
	}
	return &RosterEntry{GeoID: body.User.ID, Nick: body.User.Nick}, nil
}

func (g *GeoguessrClient) getJSON(ctx context.Context, path string, session *Session, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	if session != nil {
		req.AddCookie(&http.Cookie{Name: "_ncfa", Value: session.ncfa})
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geoguessr returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// drainAndClose fully reads and closes a response body so the
// underlying connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
