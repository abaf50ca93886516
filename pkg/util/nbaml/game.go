package nbaml

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/richard-senior/nbaml/pkg/util"
)

// DateLayout is the layout used for game dates in every table this package writes
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 02, 2006",
	"01/02/2006",
}

// GameRow is one team's line for one game, as supplied by a GameLogSource.
// Exactly two rows share a GameID.
type GameRow struct {
	GameID           string    `json:"game_id" column:"game_id"`
	GameDate         time.Time `json:"game_date" column:"game_date"`
	TeamID           int64     `json:"team_id" column:"team_id"`
	TeamAbbreviation string    `json:"team_abbreviation" column:"team_abbreviation"`
	TeamName         string    `json:"team_name" column:"team_name"`
	Matchup          string    `json:"matchup" column:"matchup"`
	WinLoss          string    `json:"win_loss" column:"win_loss"`
	Points           int       `json:"points" column:"points"`
}

// gameColumnAliases maps each canonical raw column onto the header names accepted for it
var gameColumnAliases = map[string][]string{
	"game_id":           {"game_id"},
	"team_id":           {"team_id"},
	"team_name":         {"team_name"},
	"team_abbreviation": {"team_abbreviation"},
	"game_date":         {"game_date"},
	"matchup":           {"matchup"},
	"win_loss":          {"wl", "win_loss"},
	"points":            {"pts", "points"},
}

// rawGameColumns is the canonical order used when writing raw game logs
var rawGameColumns = []string{"game_id", "team_id", "team_name", "team_abbreviation", "game_date", "matchup", "win_loss", "points"}

// ParseGameDate accepts the date layouts seen in stats API and CSV game logs
func ParseGameDate(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	s, err := util.GetAsString(v)
	if err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised game date %q", s)
}

// resolveColumns maps canonical column names onto header positions.
// Header matching is case-insensitive; unknown headers are ignored.
func resolveColumns(table string, headers []string, aliases map[string][]string, required []string) (map[string]int, error) {
	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		positions[strings.ToLower(strings.TrimSpace(h))] = i
	}

	index := make(map[string]int, len(aliases))
	var missing []string
	for _, canonical := range required {
		found := false
		for _, alias := range aliases[canonical] {
			if pos, ok := positions[alias]; ok {
				index[canonical] = pos
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, canonical)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Table: table, Missing: missing}
	}
	return index, nil
}

// ParseGameRecords converts a header plus loosely typed records (CSV strings or
// decoded JSON values) into GameRows
func ParseGameRecords(table string, headers []string, records [][]any) ([]GameRow, error) {
	idx, err := resolveColumns(table, headers, gameColumnAliases, rawGameColumns)
	if err != nil {
		return nil, err
	}

	rows := make([]GameRow, 0, len(records))
	for n, rec := range records {
		get := func(col string) any {
			i := idx[col]
			if i >= len(rec) {
				return nil
			}
			return rec[i]
		}

		var row GameRow
		var rowErr error
		fail := func(col string, err error) {
			if rowErr == nil {
				rowErr = &SchemaError{Table: table, Detail: fmt.Sprintf("row %d: bad %s: %v", n+1, col, err)}
			}
		}

		if row.GameID, err = util.GetAsString(get("game_id")); err != nil {
			fail("game_id", err)
		}
		if row.TeamID, err = util.GetAsInt64(get("team_id")); err != nil {
			fail("team_id", err)
		}
		if row.TeamName, err = util.GetAsString(get("team_name")); err != nil {
			fail("team_name", err)
		}
		if row.TeamAbbreviation, err = util.GetAsString(get("team_abbreviation")); err != nil {
			fail("team_abbreviation", err)
		}
		if row.GameDate, err = ParseGameDate(get("game_date")); err != nil {
			fail("game_date", err)
		}
		if row.Matchup, err = util.GetAsString(get("matchup")); err != nil {
			fail("matchup", err)
		}
		// unplayed games carry a null result
		if wl := get("win_loss"); wl != nil {
			row.WinLoss, _ = util.GetAsString(wl)
		}
		pts, err := util.GetAsFloat(get("points"))
		if err != nil {
			fail("points", err)
		}
		row.Points = int(math.Round(pts))

		if rowErr != nil {
			return nil, rowErr
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g GameRow) rawRecord() []string {
	return []string{
		g.GameID,
		fmt.Sprintf("%d", g.TeamID),
		g.TeamName,
		g.TeamAbbreviation,
		g.GameDate.Format(DateLayout),
		g.Matchup,
		g.WinLoss,
		fmt.Sprintf("%d", g.Points),
	}
}

// missingFields lists the required fields that are empty on this row
func (g GameRow) missingFields() []string {
	var missing []string
	if g.GameID == "" {
		missing = append(missing, "game_id")
	}
	if g.GameDate.IsZero() {
		missing = append(missing, "game_date")
	}
	if g.TeamID == 0 {
		missing = append(missing, "team_id")
	}
	if g.TeamAbbreviation == "" {
		missing = append(missing, "team_abbreviation")
	}
	if g.Matchup == "" {
		missing = append(missing, "matchup")
	}
	return missing
}
