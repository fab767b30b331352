package models

import (
	"time"

	"gorm.io/datatypes"
)

// GameStats is the counter shape shared by the global record and every
// per-game record.
type GameStats struct {
	Level         int   `json:"level" bson:"level" gorm:"default:1"`
	XP            int64 `json:"xp" bson:"xp" gorm:"default:0"`
	Victories     int64 `json:"victories" bson:"victories" gorm:"default:0"`
	Losses        int64 `json:"losses" bson:"losses" gorm:"default:0"`
	CurrentStreak int64 `json:"current_streak" bson:"current_streak" gorm:"default:0"`
}

// GlobalStats adds the derived win rate to the cross-game counters.
type GlobalStats struct {
	GameStats `bson:",inline"`
	WinRate   float64 `json:"win_rate" bson:"win_rate" gorm:"default:0"`
}

// GameTable maps a normalized game key to that game's counters.
type GameTable map[string]GameStats

// PlayerStats is the single progression record owned per user.
// Global counters are real columns so the leaderboard can order on them.
type PlayerStats struct {
	ID           string                           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string                           `gorm:"uniqueIndex;not null" json:"user_id"`
	Global       GlobalStats                      `gorm:"embedded;embeddedPrefix:global_" json:"global_stats"`
	Games        datatypes.JSONType[GameTable]    `json:"games"`
	Achievements datatypes.JSONSlice[Achievement] `json:"achievements"`
	Badges       datatypes.JSONSlice[Badge]       `json:"badges"`
	TotalScore   int64                            `gorm:"default:0" json:"total_score"`
	Version      int64                            `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time                        `json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

func (PlayerStats) TableName() string { return "player_stats" }

// NewPlayerStats returns the default record for a user who has never played.
func NewPlayerStats(id, userID string, now time.Time) *PlayerStats {
	return &PlayerStats{
		ID:           id,
		UserID:       userID,
		Global:       GlobalStats{GameStats: GameStats{Level: 1}},
		Games:        datatypes.NewJSONType(GameTable{}),
		Achievements: datatypes.JSONSlice[Achievement]{},
		Badges:       datatypes.JSONSlice[Badge]{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// GameRecords returns the per-game map, never nil. Mutations to the returned
// map must be written back with SetGames.
func (s *PlayerStats) GameRecords() GameTable {
	games := s.Games.Data()
	if games == nil {
		games = GameTable{}
	}
	return games
}

func (s *PlayerStats) SetGames(games GameTable) {
	s.Games = datatypes.NewJSONType(games)
}

// Clone returns a deep copy so callers can mutate without aliasing a stored record.
func (s *PlayerStats) Clone() *PlayerStats {
	out := *s
	src := s.GameRecords()
	games := make(GameTable, len(src))
	for k, v := range src {
		games[k] = v
	}
	out.SetGames(games)
	out.Achievements = append(datatypes.JSONSlice[Achievement]{}, s.Achievements...)
	out.Badges = append(datatypes.JSONSlice[Badge]{}, s.Badges...)
	return &out
}

// HasAchievement reports whether code was already unlocked for game.
// Global achievements carry an empty game.
func (s *PlayerStats) HasAchievement(code, game string) bool {
	for _, a := range s.Achievements {
		if a.Code == code && a.Game == game {
			return true
		}
	}
	return false
}

// HasBadge reports whether the (code, level) pair was already earned.
func (s *PlayerStats) HasBadge(code string, level int) bool {
	for _, b := range s.Badges {
		if b.Code == code && b.Level == level {
			return true
		}
	}
	return false
}
