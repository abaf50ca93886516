package nbaml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/richard-senior/nbaml/internal/logger"
	"github.com/richard-senior/nbaml/pkg/transport"
)

// GameLogSource supplies one row per team per game for a season ("YYYY-YY").
// Network failures and empty results are reported as ErrFetchFailed.
type GameLogSource interface {
	FetchSeason(ctx context.Context, season string) ([]GameRow, error)
}

/////////////////////////////////////////////////////////////////////////
////// stats.nba.com league game log
/////////////////////////////////////////////////////////////////////////

// StatsAPISource reads the leaguegamelog endpoint of the stats API
type StatsAPISource struct {
	BaseURL    string
	SeasonType string
	Client     *http.Client
}

// statsHeaders are required by stats.nba.com, which stalls requests without them
var statsHeaders = map[string]string{
	"Referer":            "https://www.nba.com/",
	"Origin":             "https://www.nba.com",
	"Connection":         "keep-alive",
	"x-nba-stats-origin": "stats",
	"x-nba-stats-token":  "true",
}

type statsResultSet struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	RowSet  [][]any  `json:"rowSet"`
}

type statsResponse struct {
	ResultSets []statsResultSet `json:"resultSets"`
	ResultSet  *statsResultSet  `json:"resultSet"`
}

// NewStatsAPISource builds a source from the global configuration
func NewStatsAPISource() *StatsAPISource {
	return &StatsAPISource{
		BaseURL:    Config.StatsBaseURL,
		SeasonType: Config.SeasonType,
		Client:     transport.NewHTTPClient(time.Duration(Config.RequestTimeoutSeconds) * time.Second),
	}
}

// GameLogURL returns the request URL for a season's team game log
func (s *StatsAPISource) GameLogURL(season string) string {
	q := url.Values{}
	q.Set("Counter", "0")
	q.Set("Direction", "ASC")
	q.Set("LeagueID", "00")
	q.Set("PlayerOrTeam", "T")
	q.Set("Season", season)
	q.Set("SeasonType", s.SeasonType)
	q.Set("Sorter", "DATE")
	return strings.TrimRight(s.BaseURL, "/") + "/leaguegamelog?" + q.Encode()
}

func (s *StatsAPISource) FetchSeason(ctx context.Context, season string) ([]GameRow, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}
	body, err := transport.Get(ctx, s.Client, s.GameLogURL(season), statsHeaders)
	if err != nil {
		return nil, fmt.Errorf("%w: season %s: %v", ErrFetchFailed, season, err)
	}
	rows, err := ParseStatsGameLog(season, body)
	if err != nil {
		return nil, err
	}
	logger.Info("Fetched game log", season, len(rows), "rows")
	return rows, nil
}

// ParseStatsGameLog decodes a leaguegamelog payload. Headers are lower-cased.
func ParseStatsGameLog(season string, body []byte) ([]GameRow, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var resp statsResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: season %s: undecodable response: %v", ErrFetchFailed, season, err)
	}

	var set *statsResultSet
	if len(resp.ResultSets) > 0 {
		set = &resp.ResultSets[0]
	} else if resp.ResultSet != nil {
		set = resp.ResultSet
	}
	if set == nil || len(set.RowSet) == 0 {
		return nil, fmt.Errorf("%w: season %s: empty result set", ErrFetchFailed, season)
	}

	headers := make([]string, len(set.Headers))
	for i, h := range set.Headers {
		headers[i] = strings.ToLower(h)
	}
	return ParseGameRecords("leaguegamelog "+season, headers, set.RowSet)
}

/////////////////////////////////////////////////////////////////////////
////// On-disk raw game logs
/////////////////////////////////////////////////////////////////////////

// CSVSource reads raw game logs previously written under the raw data directory
type CSVSource struct {
	Path func(season string) string
}

// NewCSVSource reads from the configured raw directory
func NewCSVSource() *CSVSource {
	return &CSVSource{Path: Config.RawGamesPath}
}

func (s *CSVSource) FetchSeason(ctx context.Context, season string) ([]GameRow, error) {
	path := s.Path(season)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{What: "raw game log", Path: path}
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadGameLog(path, f)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows", ErrFetchFailed, path)
	}
	logger.Debug("Loaded raw game log", path, len(rows))
	return rows, nil
}

/////////////////////////////////////////////////////////////////////////
////// Cache-or-fetch
/////////////////////////////////////////////////////////////////////////

// CachingSource serves seasons from the CSV cache when present, otherwise fetches
// them from Remote and writes the cache
type CachingSource struct {
	Cache   *CSVSource
	Remote  GameLogSource
	Refresh bool // ignore the cache and always fetch
}

// NewCachingSource wraps the stats API with the configured raw CSV cache
func NewCachingSource() *CachingSource {
	return &CachingSource{Cache: NewCSVSource(), Remote: NewStatsAPISource()}
}

func (s *CachingSource) FetchSeason(ctx context.Context, season string) ([]GameRow, error) {
	if !s.Refresh {
		rows, err := s.Cache.FetchSeason(ctx, season)
		if err == nil {
			logger.Info("Loaded game log from cache", season)
			return rows, nil
		}
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("error reading cache, perhaps consider deleting %s: %w", s.Cache.Path(season), err)
		}
		logger.Warn("Season not in cache", season)
	}

	rows, err := s.Remote.FetchSeason(ctx, season)
	if err != nil {
		return nil, err
	}
	path := s.Cache.Path(season)
	if err := WriteGameLog(path, rows); err != nil {
		logger.Warn("Failed to write cache file", path, err)
	} else {
		logger.Info("Cached game log to", path)
	}
	return rows, nil
}
