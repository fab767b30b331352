package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"player-progression/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is the relational backend (Postgres in production).
type Gorm struct {
	DB *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{DB: db}
}

// Migrate creates or updates the tables this service owns.
func (s *Gorm) Migrate() error {
	return s.DB.AutoMigrate(
		&models.PlayerStats{},
		&models.GameScore{},
		&models.PlayerProfile{},
	)
}

func (s *Gorm) GetStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Gorm) CreateStats(ctx context.Context, stats *models.PlayerStats) error {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(stats)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// SaveResult replaces the stats row only if its version still equals
// expectedVersion, and appends the score log row in the same transaction.
func (s *Gorm) SaveResult(ctx context.Context, stats *models.PlayerStats, expectedVersion int64, score *models.GameScore) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PlayerStats{}).
			Where("user_id = ? AND version = ?", stats.UserID, expectedVersion).
			Updates(map[string]interface{}{
				"global_level":          stats.Global.Level,
				"global_xp":             stats.Global.XP,
				"global_victories":      stats.Global.Victories,
				"global_losses":         stats.Global.Losses,
				"global_current_streak": stats.Global.CurrentStreak,
				"global_win_rate":       stats.Global.WinRate,
				"games":                 stats.Games,
				"achievements":          stats.Achievements,
				"badges":                stats.Badges,
				"total_score":           stats.TotalScore,
				"version":               stats.Version,
				"updated_at":            stats.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		if score != nil {
			if err := tx.Create(score).Error; err != nil {
				return fmt.Errorf("insert game score: %w", err)
			}
		}
		return nil
	})
}

func (s *Gorm) ListScores(ctx context.Context, userID string, offset, limit int) ([]models.GameScore, int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.GameScore{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	scores := []models.GameScore{}
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&scores).Error
	return scores, total, err
}

func (s *Gorm) ScoresSince(ctx context.Context, since time.Time, limit int) ([]models.GameScore, error) {
	var scores []models.GameScore
	q := s.DB.WithContext(ctx).Where("created_at > ?", since).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&scores).Error
	return scores, err
}

type leaderboardScan struct {
	UserID      string
	DisplayName string
	Level       int
	XP          int64
	TotalScore  int64
	Badges      datatypes.JSONSlice[models.Badge]
}

func (s *Gorm) TopPlayers(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	var scanned []leaderboardScan
	err := s.DB.WithContext(ctx).
		Table("player_stats AS ps").
		Select(`ps.user_id, COALESCE(pp.display_name, '') AS display_name,
			ps.global_level AS level, ps.global_xp AS xp, ps.total_score, ps.badges`).
		Joins("LEFT JOIN player_profiles pp ON pp.user_id = ps.user_id").
		Order("ps.global_level DESC, ps.global_xp DESC, ps.total_score DESC, ps.user_id ASC").
		Limit(clampLimit(limit)).
		Scan(&scanned).Error
	if err != nil {
		return nil, err
	}

	rows := make([]models.LeaderboardRow, len(scanned))
	for i, r := range scanned {
		rows[i] = models.LeaderboardRow{
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Level:       r.Level,
			XP:          r.XP,
			TotalScore:  r.TotalScore,
			Badges:      []models.Badge(r.Badges),
		}
	}
	return rows, nil
}

// UpsertProfiles inserts or refreshes profile snapshots keyed by user id.
func (s *Gorm) UpsertProfiles(ctx context.Context, profiles []models.PlayerProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar_url", "updated_at"}),
	}).Create(&profiles).Error
}
