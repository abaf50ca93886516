package nbaml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeason(t *testing.T) {
	for _, in := range []any{"2023-24", "2023/24", "2023-2024", "2023/2024", "202324", " 2023-24 ", 202324} {
		got, err := ParseSeason(in)
		require.NoError(t, err, in)
		assert.Equal(t, "2023-24", got, in)
	}

	got, err := ParseSeason("1999-00")
	require.NoError(t, err)
	assert.Equal(t, "1999-00", got)

	for _, in := range []any{nil, "", "2023", "2023-25", "20xx-24", "2023-24-25"} {
		_, err := ParseSeason(in)
		assert.Error(t, err, in)
	}
}

func TestSeasonKeyAndFirstYear(t *testing.T) {
	assert.Equal(t, "202324", SeasonKey("2023-24"))
	assert.Equal(t, "202324", SeasonKey("2023/2024"))

	year, err := FirstYear("2019-20")
	require.NoError(t, err)
	assert.Equal(t, 2019, year)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultNbamlConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, 10, cfg.RollingWindow)
	assert.Equal(t, 3, cfg.RollingMinPeriods)
	assert.Equal(t, 0.3, cfg.TestFraction)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, filepath.Join("artifacts", "champion_model.json"), cfg.ModelPath())
	assert.Equal(t, filepath.Join(".data", "raw", "games_202324.csv"), cfg.RawGamesPath("2023-24"))
	assert.Equal(t, filepath.Join(".data", "features", "team_strength_202324.csv"), cfg.FeaturePath("team_strength", "2023-24"))
	assert.Equal(t, filepath.Join(".data", "interim", "team_games_202324.csv"), cfg.TeamGamesPath("2023-24"))
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nbaml.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rollingWindow: 5
seasons: ["2021-22", "2022/23"]
seed: 7
writeIntermediates: false
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RollingWindow)
	assert.Equal(t, 3, cfg.RollingMinPeriods)
	assert.Equal(t, []string{"2021-22", "2022/23"}, cfg.Seasons)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.False(t, cfg.WriteIntermediates)
	assert.Equal(t, "https://stats.nba.com/stats", cfg.StatsBaseURL)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("rollingWindow: 2\nrollingMinPeriods: 3\n"), 0644))
	_, err = LoadConfig(invalid)
	assert.ErrorContains(t, err, "RollingMinPeriods")

	badSeason := filepath.Join(dir, "season.yaml")
	require.NoError(t, os.WriteFile(badSeason, []byte("seasons: [\"next\"]\n"), 0644))
	_, err = LoadConfig(badSeason)
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("rollingWindow: [1, 2\n"), 0644))
	_, err = LoadConfig(garbage)
	assert.Error(t, err)
}

func TestEnsureDirs(t *testing.T) {
	cfg := useTestConfig(t)
	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, cfg.RawDir())
	assert.DirExists(t, cfg.FeaturesDir())
	assert.DirExists(t, cfg.ArtifactsDir)
	assert.DirExists(t, filepath.Dir(cfg.ChampionsFile))
}
