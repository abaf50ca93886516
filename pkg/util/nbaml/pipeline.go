package nbaml

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richard-senior/nbaml/internal/logger"
)

// Pipeline runs every configured season through the feature stages, then builds the
// training table and trains the model. Seasons are processed one after another.
type Pipeline struct {
	Source GameLogSource
	Store  *Store          // optional; derived tables are also written to SQLite when set
	Labels []ChampionLabel // loaded from Config.ChampionsFile when nil
}

// SeasonResult is the output of the per-season stages
type SeasonResult struct {
	Season   string
	Label    *ChampionLabel
	Games    int
	Rows     []TeamSeasonRow
	Strength []StrengthRow
}

// RunResult summarises a full pipeline run
type RunResult struct {
	Seasons      []SeasonResult
	Skipped      map[string]error
	Training     []TrainingRow
	Artifact     *ModelArtifact
	ArtifactPath string
}

func NewPipeline(source GameLogSource, store *Store) *Pipeline {
	return &Pipeline{Source: source, Store: store}
}

func (p *Pipeline) labels() ([]ChampionLabel, error) {
	if p.Labels != nil {
		return p.Labels, nil
	}
	labels, err := LoadChampions(Config.ChampionsFile)
	if err == nil {
		return labels, nil
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || p.Store == nil {
		return nil, err
	}
	logger.Warn("Champion table missing, falling back to stored labels", Config.ChampionsFile)
	if err := p.Store.CreateTable(&ChampionLabel{}); err != nil {
		return nil, err
	}
	return p.Store.LoadChampionLabels()
}

// ProcessSeason fetches one season and runs matchups, rolling features, labels,
// strength and aggregation. Intermediate tables are written when configured.
func (p *Pipeline) ProcessSeason(ctx context.Context, season string, label *ChampionLabel) (*SeasonResult, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}
	logger.Highlight("Processing season", season)

	games, err := p.Source.FetchSeason(ctx, season)
	if err != nil {
		return nil, err
	}
	matchups, err := BuildMatchups(games)
	if err != nil {
		return nil, err
	}
	rolling := BuildRollingFeatures(matchups)
	labelled := JoinLabels(rolling, season, label)
	strength := RankStrength(rolling)
	rows := AggregateSeason(labelled, season, strength)

	if Config.WriteIntermediates {
		if err := writeIntermediates(season, label, matchups, rolling, labelled, strength); err != nil {
			return nil, err
		}
	}

	return &SeasonResult{
		Season:   season,
		Label:    label,
		Games:    len(games) / 2,
		Rows:     rows,
		Strength: strength,
	}, nil
}

func writeIntermediates(season string, label *ChampionLabel, matchups []MatchupRow, rolling []RollingFeatureRow, labelled []LabeledFeatureRow, strength []StrengthRow) error {
	if err := WriteMatchups(Config.TeamGamesPath(season), matchups); err != nil {
		return err
	}
	if err := WriteRollingFeatures(Config.FeaturePath("features", season), rolling); err != nil {
		return err
	}
	if err := WriteLabeledFeatures(Config.FeaturePath("features_labeled", season), labelled, label); err != nil {
		return err
	}
	return WriteStrength(Config.FeaturePath("team_strength", season), strength)
}

// Run processes every configured season, then trains and saves the model.
// A season that cannot be fetched or parsed is logged and skipped; an empty
// training table aborts the run with ErrNoUsableData.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	labels, err := p.labels()
	if err != nil {
		return nil, fmt.Errorf("failed to load champion labels: %w", err)
	}

	result := &RunResult{Skipped: make(map[string]error)}
	var perSeason [][]TeamSeasonRow
	for _, season := range Config.Seasons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr, err := p.ProcessSeason(ctx, season, ChampionFor(labels, season))
		if err != nil {
			if !IsSkippable(err) {
				return nil, fmt.Errorf("season %s: %w", season, err)
			}
			logger.Error("Skipping season", season, err)
			result.Skipped[season] = err
			continue
		}
		result.Seasons = append(result.Seasons, *sr)
		perSeason = append(perSeason, sr.Rows)
	}

	training, err := BuildTrainingTable(perSeason)
	if err != nil {
		return nil, err
	}
	result.Training = training
	if err := WriteTeamSeasons(Config.TrainingTablePath(), training); err != nil {
		return nil, err
	}

	artifact, err := NewTrainer().Train(training)
	if err != nil {
		return nil, err
	}
	result.Artifact = artifact
	result.ArtifactPath = Config.ModelPath()
	if err := SaveArtifact(result.ArtifactPath, artifact); err != nil {
		return nil, err
	}

	if p.Store != nil {
		if err := p.persist(result, labels); err != nil {
			return nil, err
		}
	}

	logger.Highlight("Pipeline complete", len(result.Seasons), "seasons,", len(result.Skipped), "skipped")
	return result, nil
}

// persist writes every season's team rows, the labels and the run record to SQLite
func (p *Pipeline) persist(result *RunResult, labels []ChampionLabel) error {
	if err := p.Store.CreateTables(); err != nil {
		return err
	}
	var seasons []string
	for _, sr := range result.Seasons {
		if err := p.Store.SaveTeamSeasons(sr.Rows); err != nil {
			return err
		}
		seasons = append(seasons, sr.Season)
	}
	if len(labels) > 0 {
		if err := p.Store.SaveChampions(labels); err != nil {
			return err
		}
	}
	run := NewModelRun(result.Artifact, result.ArtifactPath, strings.Join(seasons, ","))
	if err := p.Store.Save(run); err != nil {
		return fmt.Errorf("failed to record model run: %w", err)
	}
	return nil
}
