package nbaml

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/richard-senior/nbaml/internal/logger"
)

// ChampionLabel names the title winner of one season.
// Champion is UnknownChampion for a season still in progress.
type ChampionLabel struct {
	Season   string `json:"season" column:"season" dbtype:"TEXT NOT NULL" primary:"true"`
	Champion string `json:"champion" column:"champion" dbtype:"TEXT NOT NULL"`
}

// Known reports whether the label resolves to a real team
func (c *ChampionLabel) Known() bool {
	return c != nil && c.Champion != "" && c.Champion != UnknownChampion
}

// LabeledFeatureRow is a rolling feature row tagged with its season and label
type LabeledFeatureRow struct {
	RollingFeatureRow
	Season     string `json:"season" column:"season"`
	IsChampion int    `json:"is_champion" column:"is_champion"`
}

var championAliases = map[string][]string{
	"season":   {"season"},
	"champion": {"champion", "champion_team_abbreviation"},
}

// ReadChampions parses a season,champion table. Seasons are normalised to YYYY-YY.
func ReadChampions(table string, r io.Reader) ([]ChampionLabel, error) {
	header, records, err := readCSV(table, r)
	if err != nil {
		return nil, err
	}
	idx, err := resolveColumns(table, header, championAliases, []string{"season", "champion"})
	if err != nil {
		return nil, err
	}

	labels := make([]ChampionLabel, 0, len(records))
	for n, rec := range records {
		if len(rec) <= max(idx["season"], idx["champion"]) {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("row %d is short", n+1)}
		}
		season, err := ParseSeason(rec[idx["season"]])
		if err != nil {
			return nil, &SchemaError{Table: table, Detail: fmt.Sprintf("row %d: %v", n+1, err)}
		}
		champion := strings.ToUpper(strings.TrimSpace(rec[idx["champion"]]))
		if champion == "" {
			champion = UnknownChampion
		}
		labels = append(labels, ChampionLabel{Season: season, Champion: champion})
	}
	return labels, nil
}

// LoadChampions reads the champion table at path
func LoadChampions(path string) ([]ChampionLabel, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{What: "champion table", Path: path}
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	labels, err := ReadChampions(path, f)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded champion labels", len(labels), path)
	return labels, nil
}

// WriteChampions writes labels in the season,champion layout read by ReadChampions
func WriteChampions(path string, labels []ChampionLabel) error {
	records := make([][]string, len(labels))
	for i, l := range labels {
		records[i] = []string{l.Season, l.Champion}
	}
	return writeCSV(path, []string{"season", "champion"}, records)
}

// ChampionFor returns the label for season, or nil when the table has none
func ChampionFor(labels []ChampionLabel, season string) *ChampionLabel {
	if s, err := ParseSeason(season); err == nil {
		season = s
	}
	for i := range labels {
		if labels[i].Season == season {
			return &labels[i]
		}
	}
	return nil
}

// JoinLabels tags every row with season and marks the champion's rows.
// With no known champion every row gets 0; such seasons are dropped later.
func JoinLabels(rows []RollingFeatureRow, season string, label *ChampionLabel) []LabeledFeatureRow {
	out := make([]LabeledFeatureRow, len(rows))
	champion := ""
	if label.Known() {
		champion = label.Champion
	} else {
		logger.Warn("No known champion for season", season)
	}
	matched := 0
	for i, r := range rows {
		out[i] = LabeledFeatureRow{RollingFeatureRow: r, Season: season}
		if champion != "" && r.TeamAbbreviation == champion {
			out[i].IsChampion = 1
			matched++
		}
	}
	logger.Debug("Labelled rows", season, champion, matched)
	return out
}
