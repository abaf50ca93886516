package nbaml

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOdds(t *testing.T) {
	rows := []TeamSeasonRow{
		{TeamAbbreviation: "AAA", Season: "2024-25"},
		{TeamAbbreviation: "BBB", Season: "2024-25"},
		{TeamAbbreviation: "CCC", Season: "2024-25"},
		{TeamAbbreviation: "DDD", Season: "2024-25"},
	}
	odds, err := RankOdds(rows, []float64{0.1, 0.9, 0.5, 0.5})
	require.NoError(t, err)

	var teams []string
	var probs []float64
	for i, o := range odds {
		teams = append(teams, o.TeamAbbreviation)
		probs = append(probs, o.ChampionProb)
		assert.Equal(t, i+1, o.Rank)
	}
	assert.Equal(t, []string{"BBB", "CCC", "DDD", "AAA"}, teams)
	assert.Equal(t, []float64{0.9, 0.5, 0.5, 0.1}, probs)

	_, err = RankOdds(rows, []float64{0.1})
	assert.Error(t, err)
}

func TestPredictSeason(t *testing.T) {
	useTestConfig(t)
	artifact, err := NewTrainer().Train(labelledTable("2020-21", "2021-22", "2022-23"))
	require.NoError(t, err)

	source := &fakeSource{seasons: map[string][]GameRow{"2024-25": syntheticSeason("2024-25", 12)}}
	odds, err := NewPredictor(source, artifact).PredictSeason(context.Background(), "2024/25")
	require.NoError(t, err)
	require.Len(t, odds, len(testTeams))

	assert.Equal(t, "BOS", odds[0].TeamAbbreviation)
	for i, o := range odds {
		assert.Equal(t, "2024-25", o.Season)
		assert.Equal(t, 0, o.IsChampion)
		assert.Equal(t, artifact.ID, o.ModelID)
		if i > 0 {
			assert.LessOrEqual(t, o.ChampionProb, odds[i-1].ChampionProb)
		}
	}

	path := Config.FeaturePath("champion_odds", "2024-25")
	require.NoError(t, WriteChampionOdds(path, odds))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.SplitN(string(data), "\n", 2)[0], "is_champion,champion_prob,rank"))
}

func TestPredictSeasonErrors(t *testing.T) {
	useTestConfig(t)
	source := &fakeSource{}

	_, err := NewPredictor(source, nil).PredictSeason(context.Background(), "2024-25")
	assert.Error(t, err)

	artifact, err := NewTrainer().Train(labelledTable("2020-21", "2021-22", "2022-23"))
	require.NoError(t, err)
	_, err = NewPredictor(source, artifact).PredictSeason(context.Background(), "2024-25")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = NewPredictor(source, artifact).PredictSeason(context.Background(), "next year")
	assert.Error(t, err)
}

func TestRenderOddsMarkdown(t *testing.T) {
	useTestConfig(t)
	odds := []ChampionOdds{
		{TeamSeasonRow: TeamSeasonRow{TeamAbbreviation: "BOS", MeanPointDiffRoll10: 11.2, StrengthScore: ptr(10.9)}, ChampionProb: 0.625, Rank: 1},
		{TeamSeasonRow: TeamSeasonRow{TeamAbbreviation: "OKC", MeanPointDiffRoll10: 7.5}, ChampionProb: 0.2, Rank: 2},
		{TeamSeasonRow: TeamSeasonRow{TeamAbbreviation: "DET", MeanPointDiffRoll10: -9}, ChampionProb: 0.01, Rank: 3},
	}
	artifact := &ModelArtifact{ID: "run-1", Metrics: Evaluation{Accuracy: 0.9, LogLoss: 0.3, ROCAUC: 0.8}}

	md, err := RenderOddsMarkdown("2024-25", odds, artifact, 2)
	require.NoError(t, err)
	assert.Contains(t, md, "# Champion odds 2024-25")
	assert.Contains(t, md, "run-1")
	assert.Contains(t, md, "**BOS**")
	assert.Contains(t, md, "62.5%")
	assert.Contains(t, md, "+11.20")
	assert.Contains(t, md, "n/a")
	assert.NotContains(t, md, "DET")

	path := filepath.Join(Config.ArtifactsDir, "champion_odds_202425.md")
	require.NoError(t, WriteOddsReport(path, md))
	assert.FileExists(t, path)
}
