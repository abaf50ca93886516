package nbaml

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/richard-senior/nbaml/internal/logger"
)

// Compile-time checks that stored rows implement Persistable
var (
	_ Persistable = (*TeamSeasonRow)(nil)
	_ Persistable = (*ChampionLabel)(nil)
	_ Persistable = (*ChampionOdds)(nil)
	_ Persistable = (*ModelRun)(nil)
)

/////////////////////////////////////////////////////////////////////////
////// Persistable Interface Implementation
/////////////////////////////////////////////////////////////////////////

func (t *TeamSeasonRow) GetTableName() string { return "team_season" }

func (t *TeamSeasonRow) GetPrimaryKey() map[string]any {
	return map[string]any{"team_abbreviation": t.TeamAbbreviation, "season": t.Season}
}

func (t *TeamSeasonRow) BeforeSave() error {
	if t.TeamAbbreviation == "" || t.Season == "" {
		return fmt.Errorf("team-season row needs both team and season")
	}
	return nil
}

func (c *ChampionLabel) GetTableName() string { return "champion" }

func (c *ChampionLabel) GetPrimaryKey() map[string]any {
	return map[string]any{"season": c.Season}
}

func (c *ChampionLabel) BeforeSave() error {
	s, err := ParseSeason(c.Season)
	if err != nil {
		return err
	}
	c.Season = s
	if c.Champion == "" {
		c.Champion = UnknownChampion
	}
	return nil
}

// ChampionOdds is one team's predicted title probability within a season
type ChampionOdds struct {
	TeamSeasonRow
	ChampionProb float64 `json:"champion_prob" column:"champion_prob" dbtype:"REAL NOT NULL"`
	Rank         int     `json:"rank" column:"champion_rank" dbtype:"INTEGER NOT NULL"`
	ModelID      string  `json:"model_id" column:"model_id" dbtype:"TEXT"`
}

func (o *ChampionOdds) GetTableName() string { return "champion_odds" }

func (o *ChampionOdds) GetPrimaryKey() map[string]any {
	return o.TeamSeasonRow.GetPrimaryKey()
}

func (o *ChampionOdds) BeforeSave() error {
	if math.IsNaN(o.ChampionProb) || o.ChampionProb < 0 || o.ChampionProb > 1 {
		return fmt.Errorf("champion probability %v out of range", o.ChampionProb)
	}
	return o.TeamSeasonRow.BeforeSave()
}

// ModelRun records one training run and where its artifact was written
type ModelRun struct {
	ID           string    `json:"id" column:"id" dbtype:"TEXT" primary:"true"`
	TrainedAt    time.Time `json:"trained_at" column:"trained_at" dbtype:"DATETIME NOT NULL" index:"true"`
	ArtifactPath string    `json:"artifact_path" column:"artifact_path" dbtype:"TEXT NOT NULL"`
	Seasons      string    `json:"seasons" column:"seasons" dbtype:"TEXT"`
	TrainRows    int       `json:"train_rows" column:"train_rows" dbtype:"INTEGER"`
	TestRows     int       `json:"test_rows" column:"test_rows" dbtype:"INTEGER"`
	Accuracy     float64   `json:"accuracy" column:"accuracy" dbtype:"REAL"`
	LogLoss      float64   `json:"log_loss" column:"log_loss" dbtype:"REAL"`
	ROCAUC       *float64  `json:"roc_auc" column:"roc_auc" dbtype:"REAL"`
}

func (m *ModelRun) GetTableName() string { return "model_run" }

func (m *ModelRun) GetPrimaryKey() map[string]any {
	return map[string]any{"id": m.ID}
}

func (m *ModelRun) BeforeSave() error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.TrainedAt.IsZero() {
		m.TrainedAt = time.Now().UTC()
	}
	return nil
}

// NewModelRun summarises a trained artifact
func NewModelRun(a *ModelArtifact, artifactPath, seasons string) *ModelRun {
	run := &ModelRun{
		ID:           a.ID,
		TrainedAt:    a.CreatedAt,
		ArtifactPath: artifactPath,
		Seasons:      seasons,
		TrainRows:    a.Metrics.TrainRows,
		TestRows:     a.Metrics.TestRows,
		Accuracy:     a.Metrics.Accuracy,
		LogLoss:      a.Metrics.LogLoss,
	}
	if a.Metrics.AUCDefined() {
		auc := a.Metrics.ROCAUC
		run.ROCAUC = &auc
	}
	return run
}

/////////////////////////////////////////////////////////////////////////
////// Collection Operations
/////////////////////////////////////////////////////////////////////////

// SaveTeamSeasons upserts team-season rows in one transaction
func (s *Store) SaveTeamSeasons(rows []TeamSeasonRow) error {
	objs := make([]Persistable, len(rows))
	for i := range rows {
		r := rows[i]
		objs[i] = &r
	}
	if err := s.BulkSave(objs); err != nil {
		return fmt.Errorf("failed to bulk save team seasons: %w", err)
	}
	logger.Info("Saved team-season rows", len(rows))
	return nil
}

// LoadTeamSeasons returns the stored rows for season, or every season when season is empty
func (s *Store) LoadTeamSeasons(season string) ([]TeamSeasonRow, error) {
	where, args := "1 = 1 ORDER BY season, team_abbreviation", []any{}
	if season != "" {
		where, args = "season = ? ORDER BY team_abbreviation", []any{season}
	}
	found, err := s.FindWhere(&TeamSeasonRow{}, where, args...)
	if err != nil {
		return nil, err
	}
	out := make([]TeamSeasonRow, len(found))
	for i, f := range found {
		out[i] = *f.(*TeamSeasonRow)
	}
	return out, nil
}

// SaveChampions upserts champion labels
func (s *Store) SaveChampions(labels []ChampionLabel) error {
	objs := make([]Persistable, len(labels))
	for i := range labels {
		l := labels[i]
		objs[i] = &l
	}
	if err := s.BulkSave(objs); err != nil {
		return fmt.Errorf("failed to bulk save champions: %w", err)
	}
	return nil
}

// LoadChampionLabels returns every stored champion label ordered by season
func (s *Store) LoadChampionLabels() ([]ChampionLabel, error) {
	found, err := s.FindWhere(&ChampionLabel{}, "1 = 1 ORDER BY season")
	if err != nil {
		return nil, err
	}
	out := make([]ChampionLabel, len(found))
	for i, f := range found {
		out[i] = *f.(*ChampionLabel)
	}
	return out, nil
}

// SaveChampionOdds upserts a season's predictions
func (s *Store) SaveChampionOdds(odds []ChampionOdds) error {
	objs := make([]Persistable, len(odds))
	for i := range odds {
		o := odds[i]
		objs[i] = &o
	}
	if err := s.BulkSave(objs); err != nil {
		return fmt.Errorf("failed to bulk save champion odds: %w", err)
	}
	return nil
}

// LoadChampionOdds returns a season's stored predictions in rank order
func (s *Store) LoadChampionOdds(season string) ([]ChampionOdds, error) {
	found, err := s.FindWhere(&ChampionOdds{}, "season = ? ORDER BY champion_rank", season)
	if err != nil {
		return nil, err
	}
	out := make([]ChampionOdds, len(found))
	for i, f := range found {
		out[i] = *f.(*ChampionOdds)
	}
	return out, nil
}

// LatestModelRun returns the most recent training run
func (s *Store) LatestModelRun() (*ModelRun, error) {
	found, err := s.FindWhere(&ModelRun{}, "1 = 1 ORDER BY trained_at DESC LIMIT 1")
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &NotFoundError{What: "model run", Path: "model_run"}
	}
	return found[0].(*ModelRun), nil
}
