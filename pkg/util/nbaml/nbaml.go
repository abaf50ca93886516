// Package nbaml turns per-team basketball game logs into team-season features
// and trains a classifier estimating each team's chance of winning the title.
package nbaml

// UnknownChampion is the champion-table sentinel for a season whose winner is not yet known.
// It never matches a real team abbreviation.
const UnknownChampion = "UNK"

// Feature column names, in the order the classifier consumes them
const (
	ColMeanPointDiffRoll10      = "mean_point_diff_roll10"
	ColMeanPointsRoll10         = "mean_points_roll10"
	ColMeanOpponentPointsRoll10 = "mean_opponent_points_roll10"
	ColStrengthScore            = "strength_score"
)

// FeatureColumns is the ordered feature contract stored alongside every trained model
var FeatureColumns = []string{
	ColMeanPointDiffRoll10,
	ColMeanPointsRoll10,
	ColMeanOpponentPointsRoll10,
	ColStrengthScore,
}
