package models

// LeaderboardRow is what a store returns for one ranked player.
type LeaderboardRow struct {
	UserID      string
	DisplayName string
	Level       int
	XP          int64
	TotalScore  int64
	Badges      []Badge
}

// LeaderboardEntry is the public leaderboard shape.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Level       int     `json:"level"`
	XP          int64   `json:"xp"`
	TotalScore  int64   `json:"total_score"`
	Badges      []Badge `json:"badges"`
}
