package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"player-progression/cache"
	"player-progression/models"
	"player-progression/services"
	"player-progression/store"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(st services.StatsStore, lb services.LeaderboardStore) *fiber.App {
	app := fiber.New()
	SetupHealthRoute(app)
	SetupStatsRoutes(app,
		services.NewStatsService(st, cache.NewMemory(), nil),
		services.NewLeaderboardService(lb),
		nil,
	)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func TestHealthz(t *testing.T) {
	st := store.NewMemory()
	resp, body := doJSON(t, newTestApp(st, st), "GET", "/healthz", "", nil)
	if resp.StatusCode != fiber.StatusOK || string(body) != `{"status":"ok"}` {
		t.Fatalf("healthz = %d %s", resp.StatusCode, body)
	}
}

func TestGetStatsCreatesDefault(t *testing.T) {
	st := store.NewMemory()
	app := newTestApp(st, st)

	resp, body := doJSON(t, app, "GET", "/stats", "u1", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var stats models.PlayerStats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.UserID != "u1" || stats.Global.Level != 1 || stats.ID == "" {
		t.Fatalf("stats = %+v", stats)
	}

	resp, _ = doJSON(t, app, "GET", "/stats", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("without user id status = %d", resp.StatusCode)
	}
}

func TestUpdateStats(t *testing.T) {
	st := store.NewMemory()
	app := newTestApp(st, st)

	resp, body := doJSON(t, app, "POST", "/stats/update", "u1", map[string]any{"game": "Chess", "win": true, "xp": 80, "score": 12})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var stats models.PlayerStats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Global.XP != 80 || stats.Global.Victories != 1 || stats.TotalScore != 12 {
		t.Fatalf("global = %+v score = %d", stats.Global, stats.TotalScore)
	}
	if _, ok := stats.GameRecords()["chess"]; !ok {
		t.Fatalf("games = %v", stats.GameRecords())
	}

	resp, body = doJSON(t, app, "GET", "/stats/achievements", "u1", nil)
	var achievements []models.Achievement
	if err := json.Unmarshal(body, &achievements); err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("achievements = %d %s", resp.StatusCode, body)
	}
	if len(achievements) != 2 || achievements[1].Code != "CHESS_FIRST_WIN" {
		t.Fatalf("achievements = %+v", achievements)
	}

	resp, body = doJSON(t, app, "GET", "/stats/badges", "u1", nil)
	var badges []models.Badge
	if err := json.Unmarshal(body, &badges); err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("badges = %d %s", resp.StatusCode, body)
	}
	if len(badges) != 2 {
		t.Fatalf("badges = %+v", badges)
	}

	resp, body = doJSON(t, app, "GET", "/stats/history?page=1&size=5", "u1", nil)
	var history services.ScoreHistory
	if err := json.Unmarshal(body, &history); err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("history = %d %s", resp.StatusCode, body)
	}
	if history.TotalItems != 1 || history.Scores[0].Result != models.ResultWin {
		t.Fatalf("history = %+v", history)
	}
}

func TestUpdateStatsValidation(t *testing.T) {
	st := store.NewMemory()
	app := newTestApp(st, st)

	bodies := []map[string]any{
		{"win": true, "xp": 10},
		{"game": "chess", "xp": 10},
		{"game": "   ", "win": true},
		{"game": "not a slug", "win": true},
		{"game": "chess", "win": true, "xp": -4},
	}
	for _, b := range bodies {
		resp, body := doJSON(t, app, "POST", "/stats/update", "u1", b)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("%v: status = %d: %s", b, resp.StatusCode, body)
		}
	}

	if _, err := st.GetStats(context.Background(), "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rejected submissions created a record: %v", err)
	}
}

type conflictStore struct{ *store.Memory }

func (conflictStore) SaveResult(context.Context, *models.PlayerStats, int64, *models.GameScore) error {
	return store.ErrVersionConflict
}

type brokenStore struct{ *store.Memory }

func (brokenStore) GetStats(context.Context, string) (*models.PlayerStats, error) {
	return nil, errors.New("connection refused")
}

func TestUpdateStatsErrorMapping(t *testing.T) {
	mem := store.NewMemory()

	resp, body := doJSON(t, newTestApp(conflictStore{mem}, mem), "POST", "/stats/update", "u1", map[string]any{"game": "chess", "win": true})
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("conflict status = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, newTestApp(brokenStore{mem}, mem), "POST", "/stats/update", "u2", map[string]any{"game": "chess", "win": false})
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("storage failure status = %d: %s", resp.StatusCode, body)
	}
	var errBody map[string]string
	if err := json.Unmarshal(body, &errBody); err != nil {
		t.Fatal(err)
	}
	if errBody["error"] == "" || errBody["cause"] == "" {
		t.Fatalf("error body = %v", errBody)
	}
}

func TestLeaderboardRoute(t *testing.T) {
	st := store.NewMemory()
	app := newTestApp(st, st)

	for _, u := range []struct {
		id string
		xp int
	}{{"u1", 150}, {"u2", 40}, {"u3", 320}} {
		resp, body := doJSON(t, app, "POST", "/stats/update", u.id, map[string]any{"game": "chess", "win": true, "xp": u.xp})
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("seed %s: %d %s", u.id, resp.StatusCode, body)
		}
	}

	resp, body := doJSON(t, app, "GET", "/leaderboard?limit=2", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].UserID != "u3" || entries[1].UserID != "u1" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Rank != 1 || entries[0].DisplayName != "u3" {
		t.Fatalf("first entry = %+v", entries[0])
	}
}

func TestUpdateStatsKeepsUsersApart(t *testing.T) {
	st := store.NewMemory()
	app := newTestApp(st, st)

	users := []string{"alice-0001", "bobby-0002", "carol-0003", "dave0-0004"}
	for i, id := range users {
		for n := 0; n <= i; n++ {
			resp, body := doJSON(t, app, "POST", "/stats/update", id, map[string]any{"game": "chess", "win": true, "xp": 10})
			if resp.StatusCode != fiber.StatusOK {
				t.Fatalf("%s update %d: %d %s", id, n, resp.StatusCode, body)
			}
		}
	}

	for i, id := range users {
		stored, err := st.GetStats(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStats(%s): %v", id, err)
		}
		if stored.UserID != id || stored.Global.Victories != int64(i+1) {
			t.Fatalf("stored %s = user %q victories %d, want %d", id, stored.UserID, stored.Global.Victories, i+1)
		}

		resp, body := doJSON(t, app, "GET", "/stats", id, nil)
		var stats models.PlayerStats
		if err := json.Unmarshal(body, &stats); err != nil || resp.StatusCode != fiber.StatusOK {
			t.Fatalf("GET /stats for %s = %d %s", id, resp.StatusCode, body)
		}
		if stats.UserID != id || stats.Global.Victories != int64(i+1) {
			t.Fatalf("GET /stats for %s returned user %q victories %d", id, stats.UserID, stats.Global.Victories)
		}
	}

	resp, body := doJSON(t, app, "GET", "/leaderboard?limit=10", "", nil)
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(body, &entries); err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("leaderboard = %d %s", resp.StatusCode, body)
	}
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.UserID] = true
	}
	if len(seen) != len(users) {
		t.Fatalf("leaderboard users = %v, want %v", seen, users)
	}
}
