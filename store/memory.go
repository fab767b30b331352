package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"player-progression/models"
)

// Memory keeps everything in process. Used for local runs without a
// database and by tests.
type Memory struct {
	mu       sync.RWMutex
	stats    map[string]*models.PlayerStats
	scores   []models.GameScore
	profiles map[string]models.PlayerProfile
}

func NewMemory() *Memory {
	return &Memory{
		stats:    make(map[string]*models.PlayerStats),
		profiles: make(map[string]models.PlayerProfile),
	}
}

func (m *Memory) GetStats(_ context.Context, userID string) (*models.PlayerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) CreateStats(_ context.Context, stats *models.PlayerStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stats[stats.UserID]; ok {
		return ErrAlreadyExists
	}
	m.stats[stats.UserID] = stats.Clone()
	return nil
}

func (m *Memory) SaveResult(_ context.Context, stats *models.PlayerStats, expectedVersion int64, score *models.GameScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.stats[stats.UserID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	m.stats[stats.UserID] = stats.Clone()
	if score != nil {
		m.scores = append(m.scores, *score)
	}
	return nil
}

func (m *Memory) ListScores(_ context.Context, userID string, offset, limit int) ([]models.GameScore, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var mine []models.GameScore
	// newest first
	for i := len(m.scores) - 1; i >= 0; i-- {
		if m.scores[i].UserID == userID {
			mine = append(mine, m.scores[i])
		}
	}
	total := int64(len(mine))
	if offset >= len(mine) {
		return []models.GameScore{}, total, nil
	}
	end := offset + limit
	if end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], total, nil
}

func (m *Memory) ScoresSince(_ context.Context, since time.Time, limit int) ([]models.GameScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.GameScore
	for _, s := range m.scores {
		if s.CreatedAt.After(since) {
			out = append(out, s)
		}
	}
	// log order is commit order; callers page on created_at
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) TopPlayers(_ context.Context, limit int) ([]models.LeaderboardRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]models.LeaderboardRow, 0, len(m.stats))
	for _, s := range m.stats {
		rows = append(rows, models.LeaderboardRow{
			UserID:      s.UserID,
			DisplayName: m.profiles[s.UserID].DisplayName,
			Level:       s.Global.Level,
			XP:          s.Global.XP,
			TotalScore:  s.TotalScore,
			Badges:      append([]models.Badge(nil), s.Badges...),
		})
	}
	sortLeaderboard(rows)
	if limit = clampLimit(limit); len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *Memory) UpsertProfiles(_ context.Context, profiles []models.PlayerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range profiles {
		m.profiles[p.UserID] = p
	}
	return nil
}
