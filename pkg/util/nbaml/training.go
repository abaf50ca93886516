package nbaml

import (
	"fmt"

	"github.com/richard-senior/nbaml/internal/logger"
)

// TrainingRow is a team-season row from a season with a known champion
type TrainingRow = TeamSeasonRow

// BuildTrainingTable concatenates team-season rows across seasons and keeps only
// seasons where some team has is_champion = 1. Seasons are dropped whole.
func BuildTrainingTable(seasons [][]TeamSeasonRow) ([]TrainingRow, error) {
	var all []TeamSeasonRow
	for _, s := range seasons {
		all = append(all, s...)
	}

	labelled := make(map[string]bool)
	for _, r := range all {
		if r.IsChampion == 1 {
			labelled[r.Season] = true
		}
	}

	out := make([]TrainingRow, 0, len(all))
	dropped := make(map[string]bool)
	for _, r := range all {
		if labelled[r.Season] {
			out = append(out, r)
		} else if !dropped[r.Season] {
			dropped[r.Season] = true
			logger.Warn("Dropping season with no known champion", r.Season)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("training table is empty, no usable seasons: %w", ErrNoUsableData)
	}
	logger.Info("Built training table", len(out), "rows from", len(labelled), "seasons")
	return out, nil
}
