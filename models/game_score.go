package models

import "time"

const (
	ResultWin  = "win"
	ResultLoss = "loss"
)

// GameScore is the append-only log row written once per submitted result.
type GameScore struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	UserID    string    `gorm:"index;not null" json:"user_id" bson:"user_id"`
	GameName  string    `gorm:"index;not null" json:"game_name" bson:"game_name"`
	Score     int64     `json:"score" bson:"score"`
	XPEarned  int64     `json:"xp_earned" bson:"xp_earned"`
	Result    string    `gorm:"type:varchar(8)" json:"result" bson:"result"`
	CreatedAt time.Time `gorm:"index" json:"created_at" bson:"created_at"`
}

func (GameScore) TableName() string { return "game_scores" }
