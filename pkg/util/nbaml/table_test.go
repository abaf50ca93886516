package nbaml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGameLogCaseInsensitiveHeaders(t *testing.T) {
	in := "GAME_ID,TEAM_ID,TEAM_ABBREVIATION,TEAM_NAME,GAME_DATE,MATCHUP,WL,PTS,FG_PCT\n" +
		"0022300001,1610612738,BOS,Boston Celtics,2023-10-25,BOS @ NYK,W,108,0.5\n" +
		"0022300001,1610612752,NYK,New York Knicks,2023-10-25,NYK vs. BOS,L,104.0,0.4\n"
	rows, err := ReadGameLog("games.csv", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "BOS", rows[0].TeamAbbreviation)
	assert.Equal(t, int64(1610612738), rows[0].TeamID)
	assert.Equal(t, 108, rows[0].Points)
	assert.Equal(t, 104, rows[1].Points)
	assert.Equal(t, "2023-10-25", rows[1].GameDate.Format(DateLayout))
}

func TestReadGameLogMissingColumns(t *testing.T) {
	_, err := ReadGameLog("games.csv", strings.NewReader("game_id,team_id\n1,2\n"))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Missing, "matchup")
	assert.Contains(t, se.Missing, "points")
}

func TestGameLogFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "games_202223.csv")
	want := syntheticSeason("2022-23", 2)
	require.NoError(t, WriteGameLog(path, want))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadGameLog(path, f)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTeamSeasonTableKeepsNullStrength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_table.csv")
	want := []TeamSeasonRow{
		{TeamAbbreviation: "BOS", Season: "2023-24", MeanPointDiffRoll10: 11.25, MeanPointsRoll10: 120.5, MeanOpponentPointsRoll10: 109.25, StrengthScore: ptr(11.25), IsChampion: 1},
		{TeamAbbreviation: "WAS", Season: "2023-24", MeanPointDiffRoll10: -8.5, MeanPointsRoll10: 112, MeanOpponentPointsRoll10: 120.5},
	}
	require.NoError(t, WriteTeamSeasons(path, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data),
		"team_abbreviation,season,mean_point_diff_roll10,mean_points_roll10,mean_opponent_points_roll10,strength_score,is_champion\n"))

	got, err := ReadTeamSeasons(path, strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadFeatureTable(t *testing.T) {
	in := "team_abbreviation,game_id,pt_diff_roll10\nBOS,1,\nBOS,2,4.5\nMIA,3,-1\n"
	rows, err := ReadFeatureTable("features.csv", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.False(t, rows[0].HasWindow())
	assert.Equal(t, 4.5, *rows[1].PointDiffRoll10)

	ranking := RankStrength(rows)
	assert.Equal(t, "BOS", ranking[0].TeamAbbreviation)
}

func TestWriteIntermediateTables(t *testing.T) {
	useTestConfig(t)
	matchups := mustMatchups(syntheticSeason("2023-24", 5))
	rolling := BuildRollingFeatures(matchups)
	label := &ChampionLabel{Season: "2023-24", Champion: "BOS"}
	labelled := JoinLabels(rolling, "2023-24", label)

	require.NoError(t, writeIntermediates("2023-24", label, matchups, rolling, labelled, RankStrength(rolling)))

	data, err := os.ReadFile(Config.FeaturePath("features_labeled", "2023-24"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, len(labelled)+1)
	assert.True(t, strings.HasSuffix(lines[0], "point_diff_roll10,points_roll10,opponent_points_roll10,season,champion,is_champion"))
	assert.FileExists(t, Config.TeamGamesPath("2023-24"))
	assert.FileExists(t, Config.FeaturePath("team_strength", "2023-24"))
}
