package nbaml

import (
	"fmt"
	"sort"
	"strings"

	"github.com/richard-senior/nbaml/internal/logger"
)

// MatchupRow is a GameRow paired with the opponent's side of the same game
type MatchupRow struct {
	GameRow
	OpponentTeamID int64 `json:"opponent_team_id" column:"opponent_team_id"`
	OpponentPoints int   `json:"opponent_points" column:"opponent_points"`
	IsHome         bool  `json:"is_home" column:"is_home"`
	PointDiff      int   `json:"point_diff" column:"point_diff"`
}

// ParseIsHome applies the matchup convention "LAL vs. DEN" (home) or "LAL @ DEN" (away).
// Any other form is rejected rather than guessed.
func ParseIsHome(matchup string) (bool, error) {
	switch {
	case strings.Contains(matchup, "vs."):
		return true, nil
	case strings.Contains(matchup, "@"):
		return false, nil
	}
	return false, fmt.Errorf("unrecognised matchup %q", matchup)
}

// BuildMatchups pairs the two team rows of every game.
// Rows are indexed by game id first, then each game emits one record per side.
// The output is ordered by team id then game date, with game id breaking ties.
func BuildMatchups(rows []GameRow) ([]MatchupRow, error) {
	const table = "team_games"

	// pass 1: index by game id, validating as we go
	byGame := make(map[string][]int, len(rows)/2)
	var gameOrder []string
	for i, r := range rows {
		if missing := r.missingFields(); len(missing) > 0 {
			return nil, &SchemaError{Table: table, Missing: missing, Detail: fmt.Sprintf("row %d", i+1)}
		}
		if _, seen := byGame[r.GameID]; !seen {
			gameOrder = append(gameOrder, r.GameID)
		}
		byGame[r.GameID] = append(byGame[r.GameID], i)
	}

	// pass 2: emit both sides of each game
	out := make([]MatchupRow, 0, len(rows))
	for _, gameID := range gameOrder {
		idx := byGame[gameID]
		if len(idx) != 2 {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("game %s has %d team rows, want 2", gameID, len(idx))}
		}
		a, b := rows[idx[0]], rows[idx[1]]
		if a.TeamID == b.TeamID {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("game %s lists team %d twice", gameID, a.TeamID)}
		}
		for _, pair := range [2][2]GameRow{{a, b}, {b, a}} {
			team, opp := pair[0], pair[1]
			home, err := ParseIsHome(team.Matchup)
			if err != nil {
				return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("game %s: %v", gameID, err)}
			}
			out = append(out, MatchupRow{
				GameRow:        team,
				OpponentTeamID: opp.TeamID,
				OpponentPoints: opp.Points,
				IsHome:         home,
				PointDiff:      team.Points - opp.Points,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TeamID != out[j].TeamID {
			return out[i].TeamID < out[j].TeamID
		}
		if !out[i].GameDate.Equal(out[j].GameDate) {
			return out[i].GameDate.Before(out[j].GameDate)
		}
		return out[i].GameID < out[j].GameID
	})

	logger.Info("Built matchups", len(out), "rows from", len(gameOrder), "games")
	return out, nil
}
