package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"player-progression/cache"
	"player-progression/models"
	"player-progression/store"

	"github.com/google/uuid"
)

// maxWriteAttempts bounds retries when another writer bumped the version first.
const maxWriteAttempts = 3

// lockStripes is the number of mutexes shared by all users. Two users on the
// same stripe only wait for each other; memory stays fixed.
const lockStripes = 256

var ErrWriteConflict = errors.New("stats changed concurrently, retry the submission")

// StatsStore is the durable collaborator the stats service needs.
type StatsStore interface {
	GetStats(ctx context.Context, userID string) (*models.PlayerStats, error)
	CreateStats(ctx context.Context, stats *models.PlayerStats) error
	SaveResult(ctx context.Context, stats *models.PlayerStats, expectedVersion int64, score *models.GameScore) error
	ListScores(ctx context.Context, userID string, offset, limit int) ([]models.GameScore, int64, error)
}

// GameResult is one reported match outcome.
type GameResult struct {
	Game  string
	Win   bool
	XP    int64
	Score int64
}

// ScoreHistory is one page of a player's score log.
type ScoreHistory struct {
	Scores     []models.GameScore `json:"scores"`
	Page       int                `json:"page"`
	Size       int                `json:"size"`
	TotalItems int64              `json:"total_items"`
	TotalPages int                `json:"total_pages"`
}

type StatsService struct {
	Store  StatsStore
	Cache  cache.Cache // optional
	Engine *AchievementEngine

	now   func() time.Time
	locks [lockStripes]sync.Mutex
}

func NewStatsService(st StatsStore, c cache.Cache, engine *AchievementEngine) *StatsService {
	if engine == nil {
		engine = NewAchievementEngine(nil)
	}
	return &StatsService{
		Store:  st,
		Cache:  c,
		Engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func cacheKey(userID string) string {
	return "player_stats:" + userID
}

func stripeFor(userID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % lockStripes)
}

func (s *StatsService) lockUser(userID string) func() {
	mu := &s.locks[stripeFor(userID)]
	mu.Lock()
	return mu.Unlock
}

// GetOrCreate returns the player's record, creating and persisting the
// default one on first access.
func (s *StatsService) GetOrCreate(ctx context.Context, userID string) (*models.PlayerStats, error) {
	if cached, ok := s.fromCache(ctx, userID); ok {
		return cached, nil
	}
	stats, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx, stats)
	return stats, nil
}

func (s *StatsService) loadOrCreate(ctx context.Context, userID string) (*models.PlayerStats, error) {
	stats, err := s.Store.GetStats(ctx, userID)
	if err == nil {
		return stats, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load stats for %s: %w", userID, err)
	}

	stats = models.NewPlayerStats(uuid.NewString(), userID, s.now())
	err = s.Store.CreateStats(ctx, stats)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost the creation race; the winner's record is the one to use.
		return s.Store.GetStats(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("create stats for %s: %w", userID, err)
	}
	return stats, nil
}

func (s *StatsService) fromCache(ctx context.Context, userID string) (*models.PlayerStats, bool) {
	if s.Cache == nil {
		return nil, false
	}
	raw, ok, err := s.Cache.Get(ctx, cacheKey(userID))
	if err != nil {
		log.Printf("[STATS] cache read failed for %s: %v", userID, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var stats models.PlayerStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		log.Printf("[STATS] dropping undecodable cache entry for %s: %v", userID, err)
		_ = s.Cache.Delete(ctx, cacheKey(userID))
		return nil, false
	}
	return &stats, true
}

// refreshCache stores the latest record. If that fails the key is removed so
// readers fall back to the store instead of a stale entry.
func (s *StatsService) refreshCache(ctx context.Context, stats *models.PlayerStats) {
	if s.Cache == nil {
		return
	}
	key := cacheKey(stats.UserID)
	raw, err := json.Marshal(stats)
	if err == nil {
		err = s.Cache.Set(ctx, key, raw)
	}
	if err != nil {
		log.Printf("[STATS] cache refresh failed for %s: %v", stats.UserID, err)
		if delErr := s.Cache.Delete(ctx, key); delErr != nil {
			log.Printf("[STATS] cache invalidation failed for %s: %v", stats.UserID, delErr)
		}
	}
}

// ApplyResult folds one match outcome into the player's global and per-game
// counters, unlocks achievements and badges, and persists the record with
// a version check. Returns the updated record.
func (s *StatsService) ApplyResult(ctx context.Context, userID string, result GameResult) (*models.PlayerStats, error) {
	gameKey, err := NormalizeGameKey(result.Game)
	if err != nil {
		return nil, err
	}
	if result.XP < 0 {
		return nil, fmt.Errorf("%w: xp must not be negative", ErrInvalidResult)
	}
	if result.Score < 0 {
		return nil, fmt.Errorf("%w: score must not be negative", ErrInvalidResult)
	}

	unlock := s.lockUser(userID)
	defer unlock()

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		var stats *models.PlayerStats
		if attempt == 0 {
			stats, err = s.GetOrCreate(ctx, userID)
		} else {
			// The cached copy lost a version race; go to the store.
			stats, err = s.loadOrCreate(ctx, userID)
		}
		if err != nil {
			return nil, err
		}

		expected := stats.Version
		now := s.now()
		unlocked := s.apply(stats, gameKey, result, now)

		score := &models.GameScore{
			ID:        uuid.NewString(),
			UserID:    userID,
			GameName:  gameKey,
			Score:     result.Score,
			XPEarned:  result.XP,
			Result:    models.ResultLoss,
			CreatedAt: now,
		}
		if result.Win {
			score.Result = models.ResultWin
		}

		err = s.Store.SaveResult(ctx, stats, expected, score)
		if errors.Is(err, store.ErrVersionConflict) {
			log.Printf("[STATS] version conflict for %s at v%d (attempt %d)", userID, expected, attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save stats for %s: %w", userID, err)
		}

		s.refreshCache(ctx, stats)
		log.Printf("[STATS] %s %s win=%t xp=+%d -> lvl=%d xp=%d streak=%d (%d unlocked)",
			userID, gameKey, result.Win, result.XP,
			stats.Global.Level, stats.Global.XP, stats.Global.CurrentStreak, unlocked)
		return stats, nil
	}
	return nil, ErrWriteConflict
}

// apply mutates stats in memory and returns how many achievements and
// badges were newly earned.
func (s *StatsService) apply(stats *models.PlayerStats, gameKey string, result GameResult, now time.Time) int {
	ApplyOutcome(&stats.Global.GameStats, result.Win, result.XP)

	games := stats.GameRecords()
	g, ok := games[gameKey]
	if !ok {
		g = models.GameStats{Level: 1}
	}
	ApplyOutcome(&g, result.Win, result.XP)
	games[gameKey] = g
	stats.SetGames(games)

	stats.Global.WinRate = WinRate(stats.Global.Victories, stats.Global.Losses)
	stats.TotalScore += result.Score

	achievements := s.Engine.Evaluate(stats, now)
	badges := AwardBadges(stats, now)

	stats.UpdatedAt = now
	stats.Version++
	return len(achievements) + len(badges)
}

func (s *StatsService) Achievements(ctx context.Context, userID string) ([]models.Achievement, error) {
	stats, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stats.Achievements, nil
}

func (s *StatsService) Badges(ctx context.Context, userID string) ([]models.Badge, error) {
	stats, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stats.Badges, nil
}

// History returns a page of the player's score log, newest first.
func (s *StatsService) History(ctx context.Context, userID string, page, size int) (*ScoreHistory, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	scores, total, err := s.Store.ListScores(ctx, userID, (page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("list scores for %s: %w", userID, err)
	}
	return &ScoreHistory{
		Scores:     scores,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}
