package nbaml

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/richard-senior/nbaml/internal/logger"
)

/////////////////////////////////////////////////////////////////////////
////// CSV table hand-off between stages
/////////////////////////////////////////////////////////////////////////

// formatFloat renders nil as an empty cell, which reads back as null
func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func parseFloatCell(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// readCSV reads the whole of r, returning the header and the data records
func readCSV(table string, r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", table, err)
	}
	if len(records) == 0 {
		return nil, nil, &SchemaError{Table: table, Detail: "no header row"}
	}
	return records[0], records[1:], nil
}

// writeCSV writes header and records to path, creating parent directories
func writeCSV(path string, header []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := writeCSVTo(f, header, records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Debug("Wrote table", path, len(records))
	return nil
}

func writeCSVTo(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ReadGameLog parses a raw game log CSV.
// Header names are matched case-insensitively and extra columns are ignored.
func ReadGameLog(table string, r io.Reader) ([]GameRow, error) {
	header, records, err := readCSV(table, r)
	if err != nil {
		return nil, err
	}
	loose := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, cell := range rec {
			row[j] = cell
		}
		loose[i] = row
	}
	return ParseGameRecords(table, header, loose)
}

// WriteGameLog writes rows in the raw game log layout
func WriteGameLog(path string, rows []GameRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.rawRecord()
	}
	return writeCSV(path, rawGameColumns, records)
}

var matchupColumns = []string{
	"game_id", "game_date", "team_id", "team_abbreviation", "team_name", "opponent_team_id",
	"matchup", "is_home", "win_loss", "points", "opponent_points", "point_diff",
}

func (m MatchupRow) record() []string {
	return []string{
		m.GameID,
		m.GameDate.Format(DateLayout),
		strconv.FormatInt(m.TeamID, 10),
		m.TeamAbbreviation,
		m.TeamName,
		strconv.FormatInt(m.OpponentTeamID, 10),
		m.Matchup,
		formatBool(m.IsHome),
		m.WinLoss,
		strconv.Itoa(m.Points),
		strconv.Itoa(m.OpponentPoints),
		strconv.Itoa(m.PointDiff),
	}
}

// WriteMatchups writes the team_games table
func WriteMatchups(path string, rows []MatchupRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return writeCSV(path, matchupColumns, records)
}

var rollingColumns = append(append([]string{}, matchupColumns...), "point_diff_roll10", "points_roll10", "opponent_points_roll10")

func (r RollingFeatureRow) record() []string {
	return append(r.MatchupRow.record(),
		formatFloat(r.PointDiffRoll10),
		formatFloat(r.PointsRoll10),
		formatFloat(r.OpponentPointsRoll10),
	)
}

// WriteRollingFeatures writes the per-game features table
func WriteRollingFeatures(path string, rows []RollingFeatureRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return writeCSV(path, rollingColumns, records)
}

var labeledColumns = append(append([]string{}, rollingColumns...), "season", "champion", "is_champion")

// WriteLabeledFeatures writes the features_labeled table; champion is the season's label
// or empty when none was known
func WriteLabeledFeatures(path string, rows []LabeledFeatureRow, label *ChampionLabel) error {
	champion := ""
	if label != nil {
		champion = label.Champion
	}
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = append(r.RollingFeatureRow.record(), r.Season, champion, strconv.Itoa(r.IsChampion))
	}
	return writeCSV(path, labeledColumns, records)
}

var strengthColumns = []string{"team_abbreviation", "strength_score"}

// WriteStrength writes the team_strength table
func WriteStrength(path string, rows []StrengthRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{r.TeamAbbreviation, strconv.FormatFloat(r.StrengthScore, 'f', -1, 64)}
	}
	return writeCSV(path, strengthColumns, records)
}

var teamSeasonColumns = []string{
	"team_abbreviation", "season",
	ColMeanPointDiffRoll10, ColMeanPointsRoll10, ColMeanOpponentPointsRoll10, ColStrengthScore,
	"is_champion",
}

func (t TeamSeasonRow) record() []string {
	return []string{
		t.TeamAbbreviation,
		t.Season,
		strconv.FormatFloat(t.MeanPointDiffRoll10, 'f', -1, 64),
		strconv.FormatFloat(t.MeanPointsRoll10, 'f', -1, 64),
		strconv.FormatFloat(t.MeanOpponentPointsRoll10, 'f', -1, 64),
		formatFloat(t.StrengthScore),
		strconv.Itoa(t.IsChampion),
	}
}

// WriteTeamSeasons writes a team-season table such as training_table.csv
func WriteTeamSeasons(path string, rows []TeamSeasonRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return writeCSV(path, teamSeasonColumns, records)
}

// ReadTeamSeasons reads a table written by WriteTeamSeasons
func ReadTeamSeasons(table string, r io.Reader) ([]TeamSeasonRow, error) {
	header, records, err := readCSV(table, r)
	if err != nil {
		return nil, err
	}
	aliases := make(map[string][]string, len(teamSeasonColumns))
	for _, c := range teamSeasonColumns {
		aliases[c] = []string{c}
	}
	idx, err := resolveColumns(table, header, aliases, teamSeasonColumns)
	if err != nil {
		return nil, err
	}

	rows := make([]TeamSeasonRow, 0, len(records))
	for n, rec := range records {
		if len(rec) < len(header) {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("row %d is short", n+1)}
		}
		row := TeamSeasonRow{
			TeamAbbreviation: rec[idx["team_abbreviation"]],
			Season:           rec[idx["season"]],
		}
		floats := []*float64{&row.MeanPointDiffRoll10, &row.MeanPointsRoll10, &row.MeanOpponentPointsRoll10}
		for i, col := range []string{ColMeanPointDiffRoll10, ColMeanPointsRoll10, ColMeanOpponentPointsRoll10} {
			v, err := strconv.ParseFloat(rec[idx[col]], 64)
			if err != nil {
				return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("row %d: bad %s: %v", n+1, col, err)}
			}
			*floats[i] = v
		}
		if row.StrengthScore, err = parseFloatCell(rec[idx[ColStrengthScore]]); err != nil {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("row %d: bad %s: %v", n+1, ColStrengthScore, err)}
		}
		if row.IsChampion, err = strconv.Atoi(rec[idx["is_champion"]]); err != nil {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("row %d: bad is_champion: %v", n+1, err)}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
