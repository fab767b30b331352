package models

import "time"

// PlayerProfile is a local snapshot of the display data owned by the
// profile service. Populated by the profile sync worker.
type PlayerProfile struct {
	UserID      string    `gorm:"primaryKey;type:varchar(64)" json:"user_id" bson:"_id"`
	DisplayName string    `gorm:"not null" json:"display_name" bson:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

func (PlayerProfile) TableName() string { return "player_profiles" }
