package models

import "time"

// Achievement is a permanently unlocked milestone. Game is empty for
// cross-game achievements.
type Achievement struct {
	Code     string    `json:"code" bson:"code"`
	Title    string    `json:"title" bson:"title"`
	Game     string    `json:"game,omitempty" bson:"game,omitempty"`
	EarnedAt time.Time `json:"earned_at" bson:"earned_at"`
}

// Badge is one tier of a leveled badge ladder; (Code, Level) is unique per player.
type Badge struct {
	Code     string    `json:"code" bson:"code"`
	Level    int       `json:"level" bson:"level"`
	EarnedAt time.Time `json:"earned_at" bson:"earned_at"`
}
