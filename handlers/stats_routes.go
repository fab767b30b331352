// handlers/stats_routes.go
package handlers

import (
	"errors"
	"strconv"
	"strings"

	"player-progression/middleware"
	"player-progression/services"

	"github.com/gofiber/fiber/v2"
)

type updateStatsRequest struct {
	Game  string `json:"game"`
	Win   *bool  `json:"win"`
	XP    int64  `json:"xp"`
	Score int64  `json:"score"`
}

// SetupHealthRoute must be registered before the gateway middleware so
// orchestrator probes do not need the gateway token.
func SetupHealthRoute(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

// SetupStatsRoutes wires the progression endpoints. streamAuth guards the
// SSE endpoint; pass nil to use the regular user context headers.
func SetupStatsRoutes(app *fiber.App, statsService *services.StatsService, leaderboardService *services.LeaderboardService, streamAuth fiber.Handler) {
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultLeaderboardSize)))
		entries, err := leaderboardService.Top(c.Context(), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load leaderboard",
				"cause": err.Error(),
			})
		}
		return c.JSON(entries)
	})

	userCtx := middleware.UserContextMiddleware()
	if streamAuth == nil {
		streamAuth = userCtx
	}

	// 🔐 Secured routes. The gateway forwards /api/v1/game/s/stats/* -> /stats/*
	stats := app.Group("/stats")

	stats.Get("", userCtx, func(c *fiber.Ctx) error {
		record, err := statsService.GetOrCreate(c.Context(), middleware.UserID(c))
		if err != nil {
			return statsError(c, "failed to load stats", err)
		}
		return c.JSON(record)
	})

	stats.Post("/update", userCtx, func(c *fiber.Ctx) error {
		var req updateStatsRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
				"cause": err.Error(),
			})
		}
		if strings.TrimSpace(req.Game) == "" || req.Win == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "game and win are required",
			})
		}

		record, err := statsService.ApplyResult(c.Context(), middleware.UserID(c), services.GameResult{
			Game:  req.Game,
			Win:   *req.Win,
			XP:    req.XP,
			Score: req.Score,
		})
		if err != nil {
			return statsError(c, "failed to update stats", err)
		}
		return c.JSON(record)
	})

	stats.Get("/achievements", userCtx, func(c *fiber.Ctx) error {
		achievements, err := statsService.Achievements(c.Context(), middleware.UserID(c))
		if err != nil {
			return statsError(c, "failed to load achievements", err)
		}
		return c.JSON(achievements)
	})

	stats.Get("/badges", userCtx, func(c *fiber.Ctx) error {
		badges, err := statsService.Badges(c.Context(), middleware.UserID(c))
		if err != nil {
			return statsError(c, "failed to load badges", err)
		}
		return c.JSON(badges)
	})

	stats.Get("/history", userCtx, func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		history, err := statsService.History(c.Context(), middleware.UserID(c), page, size)
		if err != nil {
			return statsError(c, "failed to get history", err)
		}
		return c.JSON(history)
	})

	stats.Get("/stream", streamAuth, statsService.StreamUnlocksSSE)
}

func statsError(c *fiber.Ctx, msg string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidGame), errors.Is(err, services.ErrInvalidResult):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrWriteConflict):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
