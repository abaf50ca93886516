package nbaml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/richard-senior/nbaml/internal/logger"
	"github.com/richard-senior/nbaml/pkg/transport"
	"github.com/richard-senior/nbaml/pkg/util"
)

// TeamNames maps each franchise abbreviation used by the stats API to its current name
var TeamNames = map[string]string{
	"ATL": "Atlanta Hawks",
	"BKN": "Brooklyn Nets",
	"BOS": "Boston Celtics",
	"CHA": "Charlotte Hornets",
	"CHI": "Chicago Bulls",
	"CLE": "Cleveland Cavaliers",
	"DAL": "Dallas Mavericks",
	"DEN": "Denver Nuggets",
	"DET": "Detroit Pistons",
	"GSW": "Golden State Warriors",
	"HOU": "Houston Rockets",
	"IND": "Indiana Pacers",
	"LAC": "Los Angeles Clippers",
	"LAL": "Los Angeles Lakers",
	"MEM": "Memphis Grizzlies",
	"MIA": "Miami Heat",
	"MIL": "Milwaukee Bucks",
	"MIN": "Minnesota Timberwolves",
	"NOP": "New Orleans Pelicans",
	"NYK": "New York Knicks",
	"OKC": "Oklahoma City Thunder",
	"ORL": "Orlando Magic",
	"PHI": "Philadelphia 76ers",
	"PHX": "Phoenix Suns",
	"POR": "Portland Trail Blazers",
	"SAC": "Sacramento Kings",
	"SAS": "San Antonio Spurs",
	"TOR": "Toronto Raptors",
	"UTA": "Utah Jazz",
	"WAS": "Washington Wizards",
}

// minTeamMatchScore is the lowest fuzzy score accepted when a name is not an exact match
const minTeamMatchScore = 0.8

var (
	footnotePattern = regexp.MustCompile(`\[[^\]]*\]|[*†‡^#]`)
	yearPattern     = regexp.MustCompile(`\b(\d{4})\b`)
)

// TeamAbbreviation resolves a team name, or an abbreviation, to the stats API abbreviation
func TeamAbbreviation(name string) (string, error) {
	name = strings.TrimSpace(footnotePattern.ReplaceAllString(name, ""))
	if name == "" {
		return "", fmt.Errorf("empty team name")
	}
	upper := strings.ToUpper(name)
	if _, ok := TeamNames[upper]; ok {
		return upper, nil
	}

	best, bestScore := "", 0.0
	for abbr, full := range TeamNames {
		if strings.EqualFold(full, name) {
			return abbr, nil
		}
		score := util.FuzzyMatchScore(name, full)
		// map iteration order is random, so ties go to the alphabetically first abbreviation
		if score > bestScore || (score == bestScore && abbr < best) {
			best, bestScore = abbr, score
		}
	}
	if bestScore < minTeamMatchScore {
		return "", fmt.Errorf("no team matches %q (best %s at %.2f)", name, best, bestScore)
	}
	logger.Debug("Fuzzy matched team name", name, best, bestScore)
	return best, nil
}

// seasonFromCell reads "2023-24", "2023–24" or a bare finals year such as "2024"
func seasonFromCell(text string) (string, error) {
	text = strings.TrimSpace(footnotePattern.ReplaceAllString(text, ""))
	text = strings.NewReplacer("–", "-", "—", "-").Replace(text)
	if s, err := ParseSeason(text); err == nil {
		return s, nil
	}
	m := yearPattern.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("no season in %q", text)
	}
	year, _ := strconv.Atoi(m[1])
	return ParseSeason(fmt.Sprintf("%d-%02d", year-1, year%100))
}

// ParseChampionsHTML scrapes champion labels from any HTML table whose header has a
// season (or year) column and a champion column
func ParseChampionsHTML(r io.Reader) ([]ChampionLabel, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	seen := make(map[string]bool)
	var labels []ChampionLabel
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		seasonCol, championCol := -1, -1
		table.Find("tr").First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
			h := strings.ToLower(strings.TrimSpace(cell.Text()))
			switch {
			case seasonCol < 0 && (strings.Contains(h, "season") || strings.Contains(h, "year")):
				seasonCol = i
			case championCol < 0 && (strings.Contains(h, "champion") || strings.Contains(h, "winner")):
				championCol = i
			}
		})
		if seasonCol < 0 || championCol < 0 {
			return
		}

		table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("th, td")
			if cells.Length() <= max(seasonCol, championCol) {
				return
			}
			season, err := seasonFromCell(cells.Eq(seasonCol).Text())
			if err != nil {
				logger.Debug("Skipping champions row", err)
				return
			}
			champion := UnknownChampion
			if name := strings.TrimSpace(cells.Eq(championCol).Text()); name != "" && name != "-" {
				abbr, err := TeamAbbreviation(name)
				if err != nil {
					logger.Warn("Unresolved champion", season, err)
					return
				}
				champion = abbr
			}
			if seen[season] {
				return
			}
			seen[season] = true
			labels = append(labels, ChampionLabel{Season: season, Champion: champion})
		})
	})

	if len(labels) == 0 {
		return nil, &SchemaError{Table: "champions page", Missing: []string{"season", "champion"}}
	}
	logger.Info("Parsed champion labels", len(labels))
	return labels, nil
}

// FetchChampions downloads and parses a champions page
func FetchChampions(ctx context.Context, url string) ([]ChampionLabel, error) {
	body, err := transport.Get(ctx, nil, url, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return ParseChampionsHTML(bytes.NewReader(body))
}
