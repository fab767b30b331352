// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"player-progression/models"
)

// ProfilesEndpoint is the sync service path that lists changed profiles.
const ProfilesEndpoint = "/api/v1/public/profiles"

// RemoteProfile matches one entry of the sync service response.
type RemoteProfile struct {
	ID                string    `json:"id"`
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetProfileChangesResponse is the top-level structure of the sync service response.
type GetProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSink persists profile snapshots.
type ProfileSink interface {
	UpsertProfiles(ctx context.Context, profiles []models.PlayerProfile) error
}

type ProfileSyncWorker struct {
	sink         ProfileSink
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client

	mu     sync.Mutex
	cursor time.Time
}

func NewProfileSyncWorker(sink ProfileSink, syncServiceBaseURL, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		sink:         sink,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: ProfilesEndpoint,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Cursor is the newest remote updated_at stored so far.
func (w *ProfileSyncWorker) Cursor() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Sync Worker (sync-service → player_profiles)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time.
	if _, err := w.SyncOnce(ctx); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

// SyncOnce fetches profiles changed since the cursor and upserts them. The
// cursor only moves after the sink accepted the batch.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since := w.Cursor()
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid base sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	log.Printf("[SYNC] ➡️  GET %s", finalURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		// drain so the connection is reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[SYNC] ❌ Sync service returned %d for %s: %s", resp.StatusCode, finalURL, string(body))
		return 0, fmt.Errorf("sync service non-200 response: %d", resp.StatusCode)
	}

	var response GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode sync service response: %w", err)
	}

	if len(response.Users) == 0 {
		log.Printf("[SYNC] ✅ No profile changes since %s", sinceStr)
		return 0, nil
	}

	profiles := make([]models.PlayerProfile, 0, len(response.Users))
	latest := since
	for _, remote := range response.Users {
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}
		p, ok := toPlayerProfile(remote)
		if !ok {
			log.Printf("[SYNC] ⚠️ Skipping profile without external_id (id=%q)", remote.ID)
			continue
		}
		profiles = append(profiles, p)
	}

	if err := w.sink.UpsertProfiles(ctx, profiles); err != nil {
		return 0, fmt.Errorf("upsert %d profiles: %w", len(profiles), err)
	}

	w.mu.Lock()
	if latest.After(w.cursor) {
		w.cursor = latest
	}
	w.mu.Unlock()

	log.Printf("[SYNC] ✅ Synced %d profile(s), cursor=%s", len(profiles), latest.UTC().Format(time.RFC3339))
	return len(profiles), nil
}

// toPlayerProfile maps a remote profile. The display name prefers the full
// name and falls back to the username.
func toPlayerProfile(remote RemoteProfile) (models.PlayerProfile, bool) {
	if remote.ExternalID == "" {
		return models.PlayerProfile{}, false
	}
	var parts []string
	for _, s := range []*string{remote.FirstName, remote.LastName} {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, strings.TrimSpace(*s))
		}
	}
	name := strings.Join(parts, " ")
	if name == "" {
		name = remote.Username
	}
	updated := remote.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return models.PlayerProfile{
		UserID:      remote.ExternalID,
		DisplayName: name,
		AvatarURL:   remote.ProfilePictureURL,
		UpdatedAt:   updated,
	}, true
}
