package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"player-progression/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// StreamPollInterval is how often the stream checks the store for unlocks.
var StreamPollInterval = 2 * time.Second

// Unlocks is what a player earned past a stream cursor.
type Unlocks struct {
	Achievements []models.Achievement
	Badges       []models.Badge
}

// UnlockCursor counts entries already delivered. Both lists are append-only
// so a length is enough to resume.
type UnlockCursor struct {
	Achievements int
	Badges       int
}

// UnlocksSince reads the stored record, bypassing the cache so writes from
// other instances are seen, and returns everything past cur.
func (s *StatsService) UnlocksSince(ctx context.Context, userID string, cur UnlockCursor) (Unlocks, UnlockCursor, error) {
	stats, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return Unlocks{}, cur, err
	}
	var out Unlocks
	if cur.Achievements < len(stats.Achievements) {
		out.Achievements = stats.Achievements[cur.Achievements:]
	}
	if cur.Badges < len(stats.Badges) {
		out.Badges = stats.Badges[cur.Badges:]
	}
	return out, UnlockCursor{Achievements: len(stats.Achievements), Badges: len(stats.Badges)}, nil
}

// StreamUnlocksSSE streams newly earned achievements and badges for the
// authenticated user.
func (s *StatsService) StreamUnlocksSSE(c *fiber.Ctx) error {
	// The writer below outlives this handler, so it must own its id.
	userID, _ := c.Locals("user_id").(string)
	userID = utils.CopyString(userID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	// Start from what the player already has; only new unlocks are pushed.
	_, cursor, err := s.UnlocksSince(c.Context(), userID, UnlockCursor{})
	if err != nil {
		log.Printf("[SSE] init error for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to open stats stream",
			"cause": err.Error(),
		})
	}
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(StreamPollInterval)
		defer ticker.Stop()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				unlocks, next, err := s.UnlocksSince(context.Background(), userID, cursor)
				if err != nil {
					log.Printf("[SSE] poll error for user %s: %v", userID, err)
				} else {
					cursor = next
				}

				for _, a := range unlocks.Achievements {
					payload, _ := json.Marshal(a)
					fmt.Fprintf(w, "event: achievement\ndata: %s\n\n", payload)
				}
				for _, b := range unlocks.Badges {
					payload, _ := json.Marshal(b)
					fmt.Fprintf(w, "event: badge\ndata: %s\n\n", payload)
				}
				if len(unlocks.Achievements) == 0 && len(unlocks.Badges) == 0 {
					// keepalive; a failed flush is how a closed client shows up
					w.WriteString(":\n\n")
				}

				if err := w.Flush(); err != nil {
					log.Printf("[SSE] client for user %s went away: %v", userID, err)
					return
				}

			case <-done:
				return
			}
		}
	})

	return nil
}
