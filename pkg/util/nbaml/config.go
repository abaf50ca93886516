package nbaml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NbamlConfig contains every tunable used by the pipeline
// This centralizes paths and magic numbers for easy adjustment
type NbamlConfig struct {
	// === Locations ===
	DataDir       string `yaml:"dataDir"`       // root of raw/, interim/, features/, labels/
	ArtifactsDir  string `yaml:"artifactsDir"`  // where trained models are written
	DbPath        string `yaml:"dbPath"`        // sqlite database holding derived tables
	ChampionsFile string `yaml:"championsFile"` // champion label CSV (season,champion)
	LogFile       string `yaml:"logFile"`
	LogLevel      string `yaml:"logLevel"`

	// === Seasons ===
	Seasons       []string `yaml:"seasons"`       // seasons processed by the full pipeline, "YYYY-YY"
	CurrentSeason string   `yaml:"currentSeason"` // default season for predictions

	// === Data source ===
	StatsBaseURL          string `yaml:"statsBaseUrl"`
	SeasonType            string `yaml:"seasonType"`
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds"`

	// === Rolling features ===
	RollingWindow     int `yaml:"rollingWindow"`     // number of prior games averaged (default: 10)
	RollingMinPeriods int `yaml:"rollingMinPeriods"` // prior games needed before a value is defined (default: 3)

	// === Training ===
	TestFraction  float64 `yaml:"testFraction"`  // held-out share of rows (default: 0.3)
	Seed          int64   `yaml:"seed"`          // split seed (default: 42)
	MaxIterations int     `yaml:"maxIterations"` // gradient descent cap (default: 1000)
	LearningRate  float64 `yaml:"learningRate"`  // gradient descent step (default: 0.1)
	Tolerance     float64 `yaml:"tolerance"`     // stop when loss improves by less than this (default: 1e-9)
	L2C           float64 `yaml:"l2C"`           // inverse regularisation strength (default: 1.0)

	// === Output ===
	WriteIntermediates bool `yaml:"writeIntermediates"` // write per-stage CSV tables
	TopN               int  `yaml:"topN"`               // rows shown in console rankings
}

// DefaultNbamlConfig returns the default configuration with all standard values
func DefaultNbamlConfig() *NbamlConfig {
	dataDir := ".data"
	return &NbamlConfig{
		DataDir:       dataDir,
		ArtifactsDir:  "artifacts",
		DbPath:        filepath.Join(dataDir, "nbaml.db"),
		ChampionsFile: filepath.Join(dataDir, "labels", "champions.csv"),
		LogFile:       "/tmp/nbaml.log",
		LogLevel:      "info",

		Seasons:       []string{"2018-19", "2019-20", "2020-21", "2021-22", "2022-23", "2023-24"},
		CurrentSeason: "2023-24",

		StatsBaseURL:          "https://stats.nba.com/stats",
		SeasonType:            "Regular Season",
		RequestTimeoutSeconds: 10,

		RollingWindow:     10,
		RollingMinPeriods: 3,

		TestFraction:  0.3,
		Seed:          42,
		MaxIterations: 1000,
		LearningRate:  0.1,
		Tolerance:     1e-9,
		L2C:           1.0,

		WriteIntermediates: true,
		TopN:               10,
	}
}

// Global configuration instance
var Config *NbamlConfig

func init() {
	Config = DefaultNbamlConfig()
}

// UpdateConfig replaces the global configuration
func UpdateConfig(newConfig *NbamlConfig) {
	Config = newConfig
}

// LoadConfig overlays the YAML file at path onto the defaults.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*NbamlConfig, error) {
	cfg := DefaultNbamlConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{What: "config file", Path: path}
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(config *NbamlConfig) error {
	if config.RollingWindow < 1 {
		return fmt.Errorf("RollingWindow must be at least 1, got: %d", config.RollingWindow)
	}
	if config.RollingMinPeriods < 1 || config.RollingMinPeriods > config.RollingWindow {
		return fmt.Errorf("RollingMinPeriods must be between 1 and RollingWindow (%d), got: %d", config.RollingWindow, config.RollingMinPeriods)
	}
	if config.TestFraction <= 0.0 || config.TestFraction >= 1.0 {
		return fmt.Errorf("TestFraction must be between 0.0 and 1.0, got: %f", config.TestFraction)
	}
	if config.MaxIterations < 1 {
		return fmt.Errorf("MaxIterations must be positive, got: %d", config.MaxIterations)
	}
	if config.LearningRate <= 0.0 {
		return fmt.Errorf("LearningRate must be positive, got: %f", config.LearningRate)
	}
	if config.L2C <= 0.0 {
		return fmt.Errorf("L2C must be positive, got: %f", config.L2C)
	}
	for _, s := range config.Seasons {
		if _, err := ParseSeason(s); err != nil {
			return fmt.Errorf("invalid season in config: %w", err)
		}
	}
	return nil
}

// === Derived locations ===

func (c *NbamlConfig) RawDir() string      { return filepath.Join(c.DataDir, "raw") }
func (c *NbamlConfig) InterimDir() string  { return filepath.Join(c.DataDir, "interim") }
func (c *NbamlConfig) FeaturesDir() string { return filepath.Join(c.DataDir, "features") }

// RawGamesPath is where the raw game log for a season is cached, e.g. raw/games_202324.csv
func (c *NbamlConfig) RawGamesPath(season string) string {
	return filepath.Join(c.RawDir(), fmt.Sprintf("games_%s.csv", SeasonKey(season)))
}

// FeaturePath names a per-season table in the features directory, e.g. features/team_strength_202324.csv
func (c *NbamlConfig) FeaturePath(prefix, season string) string {
	return filepath.Join(c.FeaturesDir(), fmt.Sprintf("%s_%s.csv", prefix, SeasonKey(season)))
}

func (c *NbamlConfig) TeamGamesPath(season string) string {
	return filepath.Join(c.InterimDir(), fmt.Sprintf("team_games_%s.csv", SeasonKey(season)))
}

func (c *NbamlConfig) TrainingTablePath() string {
	return filepath.Join(c.FeaturesDir(), "training_table.csv")
}

func (c *NbamlConfig) ModelPath() string {
	return filepath.Join(c.ArtifactsDir, "champion_model.json")
}

// EnsureDirs creates the data and artifact directories
func (c *NbamlConfig) EnsureDirs() error {
	for _, dir := range []string{c.RawDir(), c.InterimDir(), c.FeaturesDir(), filepath.Dir(c.ChampionsFile), c.ArtifactsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
