package services

import (
	"context"
	"fmt"

	"player-progression/models"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

type LeaderboardStore interface {
	TopPlayers(ctx context.Context, limit int) ([]models.LeaderboardRow, error)
}

type LeaderboardService struct {
	Store LeaderboardStore
}

func NewLeaderboardService(st LeaderboardStore) *LeaderboardService {
	return &LeaderboardService{Store: st}
}

// Top returns the n best players ordered by level, xp, then cumulative score
// (all descending). n < 1 means the default size; n is capped at MaxLeaderboardSize.
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	if n < 1 {
		n = DefaultLeaderboardSize
	}
	if n > MaxLeaderboardSize {
		n = MaxLeaderboardSize
	}
	rows, err := s.Store.TopPlayers(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	if len(rows) > n {
		rows = rows[:n]
	}

	entries := make([]models.LeaderboardEntry, len(rows))
	for i, r := range rows {
		name := r.DisplayName
		if name == "" {
			name = r.UserID
		}
		badges := r.Badges
		if badges == nil {
			badges = []models.Badge{}
		}
		entries[i] = models.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      r.UserID,
			DisplayName: name,
			Level:       r.Level,
			XP:          r.XP,
			TotalScore:  r.TotalScore,
			Badges:      badges,
		}
	}
	return entries, nil
}
