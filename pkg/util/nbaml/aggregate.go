package nbaml

import (
	"sort"

	"github.com/richard-senior/nbaml/internal/logger"
)

// TeamSeasonRow is one team's season summary, the unit the classifier sees
type TeamSeasonRow struct {
	TeamAbbreviation         string   `json:"team_abbreviation" column:"team_abbreviation" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Season                   string   `json:"season" column:"season" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	MeanPointDiffRoll10      float64  `json:"mean_point_diff_roll10" column:"mean_point_diff_roll10" dbtype:"REAL NOT NULL"`
	MeanPointsRoll10         float64  `json:"mean_points_roll10" column:"mean_points_roll10" dbtype:"REAL NOT NULL"`
	MeanOpponentPointsRoll10 float64  `json:"mean_opponent_points_roll10" column:"mean_opponent_points_roll10" dbtype:"REAL NOT NULL"`
	StrengthScore            *float64 `json:"strength_score" column:"strength_score" dbtype:"REAL"`
	IsChampion               int      `json:"is_champion" column:"is_champion" dbtype:"INTEGER NOT NULL DEFAULT 0"`
}

// Feature looks up a feature column by name.
// ok is false for an unknown column; a known column with no value returns nil.
func (t TeamSeasonRow) Feature(name string) (value *float64, ok bool) {
	switch name {
	case ColMeanPointDiffRoll10:
		v := t.MeanPointDiffRoll10
		return &v, true
	case ColMeanPointsRoll10:
		v := t.MeanPointsRoll10
		return &v, true
	case ColMeanOpponentPointsRoll10:
		v := t.MeanOpponentPointsRoll10
		return &v, true
	case ColStrengthScore:
		if t.StrengthScore == nil {
			return nil, true
		}
		v := *t.StrengthScore
		return &v, true
	}
	return nil, false
}

// teamAccumulator sums the rolling fields of one team's populated games
type teamAccumulator struct {
	team                   string
	n                      int
	diff, points, oppPoint float64
	champion               int
}

func (a *teamAccumulator) add(r RollingFeatureRow) {
	a.n++
	a.diff += deref(r.PointDiffRoll10)
	a.points += deref(r.PointsRoll10)
	a.oppPoint += deref(r.OpponentPointsRoll10)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// groupByTeam drops rows without a populated window and groups the rest by
// abbreviation, returned in abbreviation order
func groupByTeam(rows []RollingFeatureRow, champion func(i int) int) []*teamAccumulator {
	byTeam := make(map[string]*teamAccumulator)
	var order []*teamAccumulator
	for i, r := range rows {
		if !r.HasWindow() {
			continue
		}
		acc, ok := byTeam[r.TeamAbbreviation]
		if !ok {
			acc = &teamAccumulator{team: r.TeamAbbreviation}
			byTeam[r.TeamAbbreviation] = acc
			order = append(order, acc)
		}
		acc.add(r)
		if champion != nil {
			acc.champion = max(acc.champion, champion(i))
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].team < order[j].team })
	return order
}

func strengthLookup(strength []StrengthRow) map[string]float64 {
	m := make(map[string]float64, len(strength))
	for _, s := range strength {
		m[s.TeamAbbreviation] = s.StrengthScore
	}
	return m
}

func buildTeamSeasons(groups []*teamAccumulator, season string, strength []StrengthRow) []TeamSeasonRow {
	scores := strengthLookup(strength)
	out := make([]TeamSeasonRow, 0, len(groups))
	for _, g := range groups {
		n := float64(g.n)
		row := TeamSeasonRow{
			TeamAbbreviation:         g.team,
			Season:                   season,
			MeanPointDiffRoll10:      g.diff / n,
			MeanPointsRoll10:         g.points / n,
			MeanOpponentPointsRoll10: g.oppPoint / n,
			IsChampion:               g.champion,
		}
		if s, ok := scores[g.team]; ok {
			row.StrengthScore = &s
		}
		out = append(out, row)
	}
	return out
}

// AggregateSeason collapses labelled game rows into one row per team.
// Games without a populated window are ignored, is_champion is the max over the
// team's games and strength_score is left-joined by abbreviation.
func AggregateSeason(rows []LabeledFeatureRow, season string, strength []StrengthRow) []TeamSeasonRow {
	rolling := make([]RollingFeatureRow, len(rows))
	for i, r := range rows {
		rolling[i] = r.RollingFeatureRow
	}
	groups := groupByTeam(rolling, func(i int) int { return rows[i].IsChampion })
	out := buildTeamSeasons(groups, season, strength)

	champions := 0
	for _, r := range out {
		champions += r.IsChampion
	}
	if champions > 1 {
		logger.Warn("More than one champion in season", season, champions)
	}

	logger.Info("Aggregated season", season, len(out), "teams")
	return out
}

// AggregateUnlabeled builds the same team-season shape for a season whose
// champion is unknown or irrelevant; is_champion is always 0
func AggregateUnlabeled(rows []RollingFeatureRow, season string, strength []StrengthRow) []TeamSeasonRow {
	out := buildTeamSeasons(groupByTeam(rows, nil), season, strength)
	logger.Info("Aggregated unlabelled season", season, len(out), "teams")
	return out
}
