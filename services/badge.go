package services

import (
	"time"

	"player-progression/models"
)

// AwardBadges checks every badge ladder after a progress update and appends
// the tiers the player has newly reached.
func AwardBadges(stats *models.PlayerStats, now time.Time) []models.Badge {
	var awarded []models.Badge
	for _, ladder := range models.BadgeLadders {
		value := badgeMetric(stats, ladder.Metric)
		for i, threshold := range ladder.Tiers {
			if value < threshold {
				break
			}
			level := i + 1
			if stats.HasBadge(ladder.Code, level) {
				continue
			}
			b := models.Badge{Code: ladder.Code, Level: level, EarnedAt: now}
			stats.Badges = append(stats.Badges, b)
			awarded = append(awarded, b)
		}
	}
	return awarded
}

func badgeMetric(stats *models.PlayerStats, metric string) int64 {
	switch metric {
	case models.MetricTotalXP:
		return TotalXP(stats.Global.Level, stats.Global.XP)
	case models.MetricLevel:
		return int64(stats.Global.Level)
	case models.MetricVictories:
		return stats.Global.Victories
	case models.MetricGamesPlayed:
		return int64(len(stats.GameRecords()))
	}
	return 0
}
