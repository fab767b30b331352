// Package store holds the durable backends for player stats, the score log
// and the profile snapshot.
package store

import (
	"errors"
	"sort"

	"player-progression/models"
)

var (
	ErrNotFound        = errors.New("store: record not found")
	ErrAlreadyExists   = errors.New("store: record already exists")
	ErrVersionConflict = errors.New("store: version conflict")
)

const maxLeaderboardRows = 100

// sortLeaderboard orders rows by level, xp and total score descending, with
// user id as the final tie-break.
func sortLeaderboard(rows []models.LeaderboardRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		if a.XP != b.XP {
			return a.XP > b.XP
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.UserID < b.UserID
	})
}

func clampLimit(limit int) int {
	if limit < 1 || limit > maxLeaderboardRows {
		return maxLeaderboardRows
	}
	return limit
}
