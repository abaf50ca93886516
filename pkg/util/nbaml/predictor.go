package nbaml

import (
	"context"
	"fmt"
	"sort"

	"github.com/richard-senior/nbaml/internal/logger"
)

// Predictor scores a season's teams with a trained artifact
type Predictor struct {
	Source   GameLogSource
	Artifact *ModelArtifact
}

func NewPredictor(source GameLogSource, artifact *ModelArtifact) *Predictor {
	return &Predictor{Source: source, Artifact: artifact}
}

// SeasonFeatures rebuilds a season's team-season table without labels.
// The strength ranking is returned too since callers usually want to show it.
func SeasonFeatures(ctx context.Context, source GameLogSource, season string) ([]TeamSeasonRow, []StrengthRow, error) {
	games, err := source.FetchSeason(ctx, season)
	if err != nil {
		return nil, nil, err
	}
	matchups, err := BuildMatchups(games)
	if err != nil {
		return nil, nil, err
	}
	rolling := BuildRollingFeatures(matchups)
	strength := RankStrength(rolling)
	return AggregateUnlabeled(rolling, season, strength), strength, nil
}

// RankOdds attaches probabilities to rows and orders them by descending probability.
// Equal probabilities keep input order. Ranks run from 1.
func RankOdds(rows []TeamSeasonRow, prob []float64) ([]ChampionOdds, error) {
	if len(rows) != len(prob) {
		return nil, fmt.Errorf("have %d probabilities for %d rows", len(prob), len(rows))
	}
	odds := make([]ChampionOdds, len(rows))
	for i, r := range rows {
		odds[i] = ChampionOdds{TeamSeasonRow: r, ChampionProb: prob[i]}
	}
	sort.SliceStable(odds, func(i, j int) bool { return odds[i].ChampionProb > odds[j].ChampionProb })
	for i := range odds {
		odds[i].Rank = i + 1
	}
	return odds, nil
}

// Score projects rows onto the artifact's columns and ranks them
func (p *Predictor) Score(rows []TeamSeasonRow) ([]ChampionOdds, error) {
	prob, err := p.Artifact.PredictRows(rows)
	if err != nil {
		return nil, err
	}
	odds, err := RankOdds(rows, prob)
	if err != nil {
		return nil, err
	}
	for i := range odds {
		odds[i].ModelID = p.Artifact.ID
	}
	return odds, nil
}

// PredictSeason rebuilds the season's features and returns teams ranked by title probability
func (p *Predictor) PredictSeason(ctx context.Context, season string) ([]ChampionOdds, error) {
	if p.Artifact == nil {
		return nil, fmt.Errorf("predictor has no model artifact")
	}
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}
	rows, _, err := SeasonFeatures(ctx, p.Source, season)
	if err != nil {
		return nil, fmt.Errorf("failed to build features for %s: %w", season, err)
	}
	odds, err := p.Score(rows)
	if err != nil {
		return nil, err
	}
	logger.Info("Predicted champion odds", season, len(odds), "teams")
	return odds, nil
}

var oddsColumns = append(append([]string{}, teamSeasonColumns...), "champion_prob", "rank")

// WriteChampionOdds writes ranked predictions as CSV
func WriteChampionOdds(path string, odds []ChampionOdds) error {
	records := make([][]string, len(odds))
	for i, o := range odds {
		records[i] = append(o.TeamSeasonRow.record(), fmt.Sprintf("%.6f", o.ChampionProb), fmt.Sprintf("%d", o.Rank))
	}
	return writeCSV(path, oddsColumns, records)
}
