package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"player-progression/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultGameTitles maps game keys to display names used in achievement titles.
var DefaultGameTitles = map[string]string{
	"thoughtbattle": "Thought Battle",
	"lifequest":     "Life Quest",
	"emotionquest":  "Emotion Quest",
}

type globalRule struct {
	Code      string
	Title     string
	Condition func(models.GlobalStats) bool
}

// gameRule codes are suffixed to the game prefix, titles take the game title.
type gameRule struct {
	Suffix    string
	TitleFmt  string
	Condition func(models.GameStats) bool
}

var globalRules = []globalRule{
	{"FIRST_WIN", "First Victory!", func(g models.GlobalStats) bool { return g.Victories >= 1 }},
	{"STREAK_5", "5-Win Streak!", func(g models.GlobalStats) bool { return g.CurrentStreak >= 5 }},
	{"LEVEL_5", "Level 5 Reached!", func(g models.GlobalStats) bool { return g.Level >= 5 }},
	{"WIN_MASTER", "10 Victories!", func(g models.GlobalStats) bool { return g.Victories >= 10 }},
	{"LEVEL_MASTER", "Level 10 Reached!", func(g models.GlobalStats) bool { return g.Level >= 10 }},
}

var gameRules = []gameRule{
	{"FIRST_WIN", "First %s Victory!", func(g models.GameStats) bool { return g.Victories >= 1 }},
	{"LEVEL_3", "%s Level 3!", func(g models.GameStats) bool { return g.Level >= 3 }},
	{"LEVEL_5", "%s Level 5!", func(g models.GameStats) bool { return g.Level >= 5 }},
	{"WIN_5", "5 %s Wins!", func(g models.GameStats) bool { return g.Victories >= 5 }},
	{"WIN_10", "10 %s Wins!", func(g models.GameStats) bool { return g.Victories >= 10 }},
	{"STREAK_3", "3-Game %s Streak!", func(g models.GameStats) bool { return g.CurrentStreak >= 3 }},
}

// AchievementEngine evaluates the fixed achievement rules against a stats
// record. It holds no per-player state.
type AchievementEngine struct {
	titles map[string]string
}

// NewAchievementEngine layers titles over DefaultGameTitles; an entry in
// titles wins for the same key.
func NewAchievementEngine(titles map[string]string) *AchievementEngine {
	merged := make(map[string]string, len(DefaultGameTitles)+len(titles))
	for k, v := range DefaultGameTitles {
		merged[k] = v
	}
	for k, v := range titles {
		merged[k] = v
	}
	return &AchievementEngine{titles: merged}
}

// GameTitle returns the display name for a normalized game key.
func (e *AchievementEngine) GameTitle(key string) string {
	if t, ok := e.titles[key]; ok {
		return t
	}
	// Casers are stateful, so one per call.
	return cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(key))
}

// CodePrefix turns a game key into the upper-case prefix of its achievement codes.
func CodePrefix(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Evaluate appends every newly satisfied achievement to stats and returns
// them in unlock order. Codes already unlocked for the same game are skipped, so re-running on
// an unchanged record is a no-op.
func (e *AchievementEngine) Evaluate(stats *models.PlayerStats, now time.Time) []models.Achievement {
	var unlocked []models.Achievement
	add := func(code, title, game string) {
		if stats.HasAchievement(code, game) {
			return
		}
		a := models.Achievement{Code: code, Title: title, Game: game, EarnedAt: now}
		stats.Achievements = append(stats.Achievements, a)
		unlocked = append(unlocked, a)
	}

	for _, r := range globalRules {
		if r.Condition(stats.Global) {
			add(r.Code, r.Title, "")
		}
	}

	games := stats.GameRecords()
	keys := make([]string, 0, len(games))
	for k := range games {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		g := games[key]
		prefix := CodePrefix(key)
		title := e.GameTitle(key)
		for _, r := range gameRules {
			if r.Condition(g) {
				add(prefix+"_"+r.Suffix, fmt.Sprintf(r.TitleFmt, title), key)
			}
		}
	}
	return unlocked
}
