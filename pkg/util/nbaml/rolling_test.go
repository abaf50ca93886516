package nbaml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorMeans(t *testing.T) {
	out := PriorMeans([]float64{5, -3, 2, 8, -1, 4}, 10, 3)
	require.Len(t, out, 6)

	assert.Nil(t, out[0])
	assert.Nil(t, out[1])
	assert.Nil(t, out[2])
	require.NotNil(t, out[3])
	assert.InDelta(t, 4.0/3.0, *out[3], 1e-12)
	assert.InDelta(t, 3.0, *out[4], 1e-12)
	assert.InDelta(t, 2.2, *out[5], 1e-12)
}

func TestPriorMeansWindowSlides(t *testing.T) {
	values := make([]float64, 15)
	for i := range values {
		values[i] = float64(i + 1)
	}
	out := PriorMeans(values, 10, 3)

	// index 12 averages values[2:12], i.e. 3..12
	require.NotNil(t, out[12])
	assert.InDelta(t, 7.5, *out[12], 1e-12)
	// index 14 averages 5..14
	assert.InDelta(t, 9.5, *out[14], 1e-12)
}

func TestBuildRollingFeaturesUsesPriorGamesOnly(t *testing.T) {
	useTestConfig(t)
	day := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	diffs := []int{5, -3, 2, 8, -1, 4}

	// the team's games arrive newest first; output must stay aligned with input
	var rows []MatchupRow
	for i := len(diffs) - 1; i >= 0; i-- {
		rows = append(rows, MatchupRow{
			GameRow: GameRow{
				GameID:           "g" + string(rune('0'+i)),
				GameDate:         day.AddDate(0, 0, i),
				TeamID:           1,
				TeamAbbreviation: "BOS",
				Points:           100 + diffs[i],
			},
			OpponentPoints: 100,
			PointDiff:      diffs[i],
		})
	}

	out := BuildRollingFeatures(rows)
	require.Len(t, out, len(rows))
	for i, r := range out {
		assert.Equal(t, rows[i].GameID, r.GameID)
	}

	last := out[0] // the sixth game
	require.NotNil(t, last.PointDiffRoll10)
	assert.InDelta(t, 2.2, *last.PointDiffRoll10, 1e-12)
	assert.InDelta(t, 102.2, *last.PointsRoll10, 1e-12)
	assert.InDelta(t, 100.0, *last.OpponentPointsRoll10, 1e-12)

	for _, r := range out[3:] { // the first three games
		assert.False(t, r.HasWindow())
	}

	// a blowout in the last game must not change its own feature
	rows[0].PointDiff, rows[0].Points = 60, 160
	again := BuildRollingFeatures(rows)
	assert.Equal(t, *last.PointDiffRoll10, *again[0].PointDiffRoll10)
}

func TestBuildRollingFeaturesPartitionsByTeam(t *testing.T) {
	useTestConfig(t)
	matchups := mustMatchups(syntheticSeason("2023-24", 8))
	out := BuildRollingFeatures(matchups)

	populated := map[string]int{}
	for _, r := range out {
		if r.HasWindow() {
			populated[r.TeamAbbreviation]++
		}
	}
	for _, team := range testTeams {
		assert.Equal(t, 5, populated[team.abbr], team.abbr)
	}
}
