package models

// BadgeLadder is a static badge definition. Reaching Tiers[i] on Metric
// earns Badge{Code, Level: i+1}.
type BadgeLadder struct {
	Code        string
	Name        string
	Description string
	Metric      string  // one of the Metric* keys
	Tiers       []int64 // ascending thresholds
}

const (
	MetricTotalXP     = "total_xp"
	MetricLevel       = "level"
	MetricVictories   = "victories"
	MetricGamesPlayed = "games_played"
)

// BadgeLadders are evaluated in order after every result.
var BadgeLadders = []BadgeLadder{
	{
		Code:        "EXPERIENCE",
		Name:        "Experience",
		Description: "Starter at the first XP, Pro at 500 cumulative XP, then 2500 and 10000",
		Metric:      MetricTotalXP,
		Tiers:       []int64{1, 500, 2500, 10000},
	},
	{
		Code:        "LEVEL",
		Name:        "Climber",
		Description: "Reached global level 5, 10 and 25",
		Metric:      MetricLevel,
		Tiers:       []int64{5, 10, 25},
	},
	{
		Code:        "VICTORIES",
		Name:        "Victor",
		Description: "10, 50 and 100 victories across all games",
		Metric:      MetricVictories,
		Tiers:       []int64{10, 50, 100},
	},
	{
		Code:        "EXPLORER",
		Name:        "Explorer",
		Description: "Played 1 and 3 different games",
		Metric:      MetricGamesPlayed,
		Tiers:       []int64{1, 3},
	},
}
