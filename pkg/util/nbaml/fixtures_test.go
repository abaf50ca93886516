package nbaml

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

type testTeam struct {
	id       int64
	abbr     string
	strength int
}

var testTeams = []testTeam{
	{1610612738, "BOS", 12},
	{1610612743, "DEN", 8},
	{1610612749, "MIL", 5},
	{1610612752, "NYK", 2},
	{1610612756, "PHX", -3},
	{1610612765, "DET", -9},
}

// gamePair returns both team rows of one game, home side first
func gamePair(gameID string, date time.Time, home, away testTeam, homePts, awayPts int) []GameRow {
	wl := func(a, b int) string {
		if a > b {
			return "W"
		}
		return "L"
	}
	return []GameRow{
		{
			GameID: gameID, GameDate: date, TeamID: home.id, TeamAbbreviation: home.abbr,
			TeamName: TeamNames[home.abbr], Matchup: home.abbr + " vs. " + away.abbr,
			WinLoss: wl(homePts, awayPts), Points: homePts,
		},
		{
			GameID: gameID, GameDate: date, TeamID: away.id, TeamAbbreviation: away.abbr,
			TeamName: TeamNames[away.abbr], Matchup: away.abbr + " @ " + home.abbr,
			WinLoss: wl(awayPts, homePts), Points: awayPts,
		},
	}
}

// syntheticSeason plays every team once a day for days days. Scores follow each
// team's strength so the strongest team has the best point differential.
func syntheticSeason(season string, days int) []GameRow {
	year, _ := FirstYear(season)
	start := time.Date(year, time.October, 20, 0, 0, 0, 0, time.UTC)
	n := len(testTeams)
	var rows []GameRow
	for d := 0; d < days; d++ {
		order := make([]testTeam, n)
		for i := range order {
			order[i] = testTeams[(i+d)%n]
		}
		for g := 0; g+1 < n; g += 2 {
			home, away := order[g], order[g+1]
			id := fmt.Sprintf("00%s%03d%d", SeasonKey(season), d, g/2)
			rows = append(rows, gamePair(id, start.AddDate(0, 0, d), home, away,
				105+home.strength+d%4, 105+away.strength+(d+1)%3)...)
		}
	}
	return rows
}

// fakeSource serves fixed seasons and reports the rest as missing
type fakeSource struct {
	seasons map[string][]GameRow
	calls   int
}

func (f *fakeSource) FetchSeason(ctx context.Context, season string) ([]GameRow, error) {
	f.calls++
	rows, ok := f.seasons[season]
	if !ok {
		return nil, &NotFoundError{What: "raw game log", Path: season}
	}
	return rows, nil
}

// useTestConfig points the global configuration at a temporary directory
func useTestConfig(t *testing.T) *NbamlConfig {
	t.Helper()
	previous := Config
	dir := t.TempDir()
	cfg := DefaultNbamlConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.ArtifactsDir = filepath.Join(dir, "artifacts")
	cfg.DbPath = ":memory:"
	cfg.ChampionsFile = filepath.Join(dir, "data", "labels", "champions.csv")
	cfg.LogFile = filepath.Join(dir, "nbaml.log")
	UpdateConfig(cfg)
	t.Cleanup(func() { UpdateConfig(previous) })
	return cfg
}

func ptr(f float64) *float64 { return &f }

// labelledTable builds team-season rows for several seasons with BOS as champion
func labelledTable(seasons ...string) []TeamSeasonRow {
	var rows []TeamSeasonRow
	for _, s := range seasons {
		rolling := BuildRollingFeatures(mustMatchups(syntheticSeason(s, 14)))
		labelled := JoinLabels(rolling, s, &ChampionLabel{Season: s, Champion: "BOS"})
		rows = append(rows, AggregateSeason(labelled, s, RankStrength(rolling))...)
	}
	return rows
}

func mustMatchups(rows []GameRow) []MatchupRow {
	m, err := BuildMatchups(rows)
	if err != nil {
		panic(err)
	}
	return m
}
