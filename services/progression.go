package services

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"player-progression/models"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
)

// BaseXPPerLevel: XP needed to leave level n is BaseXPPerLevel * n.
const BaseXPPerLevel = 100

const maxGameKeyLength = 64

var (
	ErrInvalidGame   = errors.New("invalid game identifier")
	ErrInvalidResult = errors.New("invalid game result")
)

// xpForNextLevel returns XP required to go from currentLevel to currentLevel+1.
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(BaseXPPerLevel) * int64(currentLevel)
}

// NormalizeGameKey folds a client supplied game id into the key used for
// per-game records: ASCII, trimmed, lower-case, slug shaped.
func NormalizeGameKey(raw string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(unidecode.Unidecode(raw)))
	if key == "" {
		return "", fmt.Errorf("%w: game is required", ErrInvalidGame)
	}
	if len(key) > maxGameKeyLength || !slug.IsSlug(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidGame, raw)
	}
	return key, nil
}

// NormalizeLevel consumes XP into levels while the current level's
// threshold is met. Leaves 0 <= XP < Level*BaseXPPerLevel.
func NormalizeLevel(c *models.GameStats) (levelsGained int) {
	if c.Level < 1 {
		c.Level = 1
	}
	if c.XP < 0 {
		c.XP = 0
	}
	for c.XP >= xpForNextLevel(c.Level) {
		c.XP -= xpForNextLevel(c.Level)
		c.Level++
		levelsGained++
	}
	return levelsGained
}

// ApplyOutcome records one win or loss plus earned XP on a counter set.
// XP is kept on losses too.
func ApplyOutcome(c *models.GameStats, win bool, xpEarned int64) int {
	if win {
		c.Victories++
		c.CurrentStreak++
	} else {
		c.Losses++
		c.CurrentStreak = 0
	}
	c.XP += xpEarned
	return NormalizeLevel(c)
}

// WinRate is the percentage of wins rounded to two decimals, 0 with no games.
func WinRate(victories, losses int64) float64 {
	total := victories + losses
	if total <= 0 {
		return 0.0
	}
	return math.Round(float64(victories)/float64(total)*100*100) / 100
}

// TotalXP reconstructs cumulative XP from a normalized (level, xp) pair:
// the sum of n*BaseXPPerLevel for n < level, plus the remainder.
func TotalXP(level int, xp int64) int64 {
	if level < 1 {
		level = 1
	}
	l := int64(level)
	return BaseXPPerLevel*l*(l-1)/2 + xp
}
