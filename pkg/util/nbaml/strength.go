package nbaml

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/richard-senior/nbaml/internal/logger"
)

// StrengthRow ranks a team by its mean trailing point differential
type StrengthRow struct {
	TeamAbbreviation string  `json:"team_abbreviation"`
	StrengthScore    float64 `json:"strength_score"`
}

// RankStrength scores each team by the mean of point_diff_roll10 over its
// populated games and sorts descending. Ties keep abbreviation order.
func RankStrength(rows []RollingFeatureRow) []StrengthRow {
	groups := groupByTeam(rows, nil)
	out := make([]StrengthRow, len(groups))
	for i, g := range groups {
		out[i] = StrengthRow{TeamAbbreviation: g.team, StrengthScore: g.diff / float64(g.n)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StrengthScore > out[j].StrengthScore
	})
	logger.Info("Ranked team strength", len(out), "teams")
	return out
}

// ReadFeatureTable reads the team abbreviation and point_diff_roll10 columns of a
// features table, which is all RankStrength needs. Other columns are ignored.
func ReadFeatureTable(table string, r io.Reader) ([]RollingFeatureRow, error) {
	header, records, err := readCSV(table, r)
	if err != nil {
		return nil, err
	}
	aliases := map[string][]string{
		"team_abbreviation": {"team_abbreviation"},
		"point_diff_roll10": {"point_diff_roll10", "pt_diff_roll10"},
	}
	idx, err := resolveColumns(table, header, aliases, []string{"team_abbreviation", "point_diff_roll10"})
	if err != nil {
		return nil, err
	}

	rows := make([]RollingFeatureRow, 0, len(records))
	for n, rec := range records {
		if len(rec) < len(header) {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("row %d is short", n+1)}
		}
		var row RollingFeatureRow
		row.TeamAbbreviation = rec[idx["team_abbreviation"]]
		if row.PointDiffRoll10, err = parseFloatCell(rec[idx["point_diff_roll10"]]); err != nil {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("row %d: bad point_diff_roll10: %v", n+1, err)}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FormatStrength renders a ranking as aligned console lines, limited to topN when positive
func FormatStrength(rows []StrengthRow, topN int) []string {
	if topN > 0 && topN < len(rows) {
		rows = rows[:topN]
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%2d. %-4s %s", i+1, r.TeamAbbreviation, strconv.FormatFloat(r.StrengthScore, 'f', 2, 64))
	}
	return lines
}
