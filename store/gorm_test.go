package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"player-progression/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestGorm(t *testing.T) *Gorm {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// one connection, one in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	g := NewGorm(db)
	if err := g.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return g
}

func TestGormCreateAndGet(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	if _, err := g.GetStats(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing record err = %v", err)
	}
	if err := g.CreateStats(ctx, models.NewPlayerStats("id-1", "u1", now)); err != nil {
		t.Fatal(err)
	}
	if err := g.CreateStats(ctx, models.NewPlayerStats("id-2", "u1", now)); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate create err = %v", err)
	}

	got, err := g.GetStats(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "id-1" || got.Global.Level != 1 || got.Version != 1 {
		t.Fatalf("record = %+v", got)
	}
	if len(got.GameRecords()) != 0 || len(got.Achievements) != 0 {
		t.Fatalf("default record not empty: %+v", got)
	}
}

func TestGormSaveResultRoundTrip(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	s := models.NewPlayerStats("id-1", "u1", now)
	if err := g.CreateStats(ctx, s); err != nil {
		t.Fatal(err)
	}

	next := s.Clone()
	next.Global.Level = 2
	next.Global.XP = 20
	next.Global.Victories = 1
	next.Global.CurrentStreak = 1
	next.Global.WinRate = 100
	next.SetGames(models.GameTable{"chess": {Level: 2, XP: 20, Victories: 1, CurrentStreak: 1}})
	next.Achievements = append(next.Achievements, models.Achievement{Code: "FIRST_WIN", Title: "First Victory!", EarnedAt: now})
	next.Badges = append(next.Badges, models.Badge{Code: "EXPERIENCE", Level: 1, EarnedAt: now})
	next.TotalScore = 42
	next.Version = 2
	score := &models.GameScore{ID: "s1", UserID: "u1", GameName: "chess", Score: 42, XPEarned: 120, Result: models.ResultWin, CreatedAt: now}

	if err := g.SaveResult(ctx, next, 1, score); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := g.GetStats(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Global.Level != 2 || got.Global.XP != 20 || got.Global.WinRate != 100 || got.Version != 2 {
		t.Fatalf("global = %+v v%d", got.Global, got.Version)
	}
	if chess := got.GameRecords()["chess"]; chess.Level != 2 || chess.Victories != 1 {
		t.Fatalf("chess = %+v", chess)
	}
	if len(got.Achievements) != 1 || got.Achievements[0].Code != "FIRST_WIN" {
		t.Fatalf("achievements = %+v", got.Achievements)
	}
	if len(got.Badges) != 1 || got.TotalScore != 42 {
		t.Fatalf("badges = %+v score = %d", got.Badges, got.TotalScore)
	}

	scores, total, err := g.ListScores(ctx, "u1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(scores) != 1 || scores[0].XPEarned != 120 {
		t.Fatalf("scores = %+v total = %d", scores, total)
	}
}

func TestGormSaveResultVersionConflict(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s := models.NewPlayerStats("id-1", "u1", now)
	if err := g.CreateStats(ctx, s); err != nil {
		t.Fatal(err)
	}
	next := s.Clone()
	next.Global.Victories = 1
	next.Version = 2
	score := &models.GameScore{ID: "s1", UserID: "u1", GameName: "chess", Result: models.ResultWin, CreatedAt: now}

	if err := g.SaveResult(ctx, next, 7, score); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	_, total, err := g.ListScores(ctx, "u1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("score row written despite conflict: %d", total)
	}
}

func TestGormTopPlayers(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seed := []struct {
		user  string
		level int
		xp    int64
		score int64
	}{
		{"low", 3, 50, 0},
		{"b", 5, 50, 10},
		{"a", 5, 50, 30},
	}
	for _, p := range seed {
		s := models.NewPlayerStats(p.user+"-id", p.user, now)
		if err := g.CreateStats(ctx, s); err != nil {
			t.Fatal(err)
		}
		next := s.Clone()
		next.Global.Level = p.level
		next.Global.XP = p.xp
		next.TotalScore = p.score
		next.Version = 2
		if err := g.SaveResult(ctx, next, 1, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.UpsertProfiles(ctx, []models.PlayerProfile{{UserID: "a", DisplayName: "Ana", UpdatedAt: now}}); err != nil {
		t.Fatal(err)
	}
	if err := g.UpsertProfiles(ctx, []models.PlayerProfile{{UserID: "a", DisplayName: "Ana Lima", UpdatedAt: now}}); err != nil {
		t.Fatal(err)
	}

	rows, err := g.TopPlayers(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].UserID != "a" || rows[1].UserID != "b" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].DisplayName != "Ana Lima" || rows[1].DisplayName != "" {
		t.Fatalf("names = %q, %q", rows[0].DisplayName, rows[1].DisplayName)
	}
}

func TestGormScoresSince(t *testing.T) {
	g := newTestGorm(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	s := models.NewPlayerStats("id-1", "u1", base)
	if err := g.CreateStats(ctx, s); err != nil {
		t.Fatal(err)
	}
	cur := s
	for i := 0; i < 3; i++ {
		next := cur.Clone()
		next.Version = cur.Version + 1
		score := &models.GameScore{
			ID: "s" + string(rune('1'+i)), UserID: "u1", GameName: "chess",
			Result: models.ResultWin, CreatedAt: base.Add(time.Duration(i+1) * time.Hour),
		}
		if err := g.SaveResult(ctx, next, cur.Version, score); err != nil {
			t.Fatal(err)
		}
		cur = next
	}

	got, err := g.ScoresSince(ctx, base.Add(90*time.Minute), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "s2" || got[1].ID != "s3" {
		t.Fatalf("scores since = %+v", got)
	}

	got, err = g.ScoresSince(ctx, base, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("limited scores = %+v", got)
	}
}
