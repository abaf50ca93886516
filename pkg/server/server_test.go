package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/richard-senior/nbaml/pkg/util/nbaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource map[string][]nbaml.GameRow

func (s staticSource) FetchSeason(ctx context.Context, season string) ([]nbaml.GameRow, error) {
	rows, ok := s[season]
	if !ok {
		return nil, &nbaml.NotFoundError{What: "raw game log", Path: season}
	}
	return rows, nil
}

func newTestServer(t *testing.T, source nbaml.GameLogSource) (*Server, *nbaml.Store, string) {
	t.Helper()
	store := nbaml.NewStore(":memory:")
	require.NoError(t, store.CreateTables())
	t.Cleanup(func() { store.Close() })
	artifactPath := filepath.Join(t.TempDir(), "champion_model.json")
	return New(store, source, artifactPath), store, artifactPath
}

func get(t *testing.T, s *Server, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	var body map[string]string
	assert.Equal(t, http.StatusOK, get(t, s, "/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestTeams(t *testing.T) {
	s, store, _ := newTestServer(t, nil)
	require.NoError(t, store.SaveTeamSeasons([]nbaml.TeamSeasonRow{
		{TeamAbbreviation: "BOS", Season: "2023-24", MeanPointDiffRoll10: 11, IsChampion: 1},
		{TeamAbbreviation: "DAL", Season: "2023-24", MeanPointDiffRoll10: 3},
	}))

	var rows []nbaml.TeamSeasonRow
	assert.Equal(t, http.StatusOK, get(t, s, "/seasons/202324/teams", &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "BOS", rows[0].TeamAbbreviation)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, get(t, s, "/seasons/2019-20/teams", &errBody))
	assert.Contains(t, errBody["error"], "not found")
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/seasons/latest/teams", &errBody))
}

func TestOddsFromStore(t *testing.T) {
	s, store, _ := newTestServer(t, nil)
	odds, err := nbaml.RankOdds([]nbaml.TeamSeasonRow{
		{TeamAbbreviation: "CLE", Season: "2024-25"},
		{TeamAbbreviation: "OKC", Season: "2024-25"},
	}, []float64{0.3, 0.6})
	require.NoError(t, err)
	require.NoError(t, store.SaveChampionOdds(odds))

	var got []nbaml.ChampionOdds
	assert.Equal(t, http.StatusOK, get(t, s, "/seasons/2024-25/odds", &got))
	require.Len(t, got, 2)
	assert.Equal(t, "OKC", got[0].TeamAbbreviation)
	assert.Equal(t, 1, got[0].Rank)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/seasons/2023-24/odds", nil))
}

func TestOddsWithoutArtifact(t *testing.T) {
	s, _, _ := newTestServer(t, staticSource{})
	assert.Equal(t, http.StatusNotFound, get(t, s, "/seasons/2024-25/odds", nil))
	assert.Equal(t, http.StatusNotFound, get(t, s, "/model", nil))
}

func TestModelAndLatestRun(t *testing.T) {
	s, store, artifactPath := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/runs/latest", nil))

	artifact := &nbaml.ModelArtifact{
		ID:             "run-1",
		CreatedAt:      time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		FeatureColumns: []string{nbaml.ColMeanPointDiffRoll10},
		Classifier:     nbaml.LogisticModel{Weights: []float64{1.5}, Intercept: -2, Means: []float64{0}, Scales: []float64{4}},
		Metrics:        nbaml.Evaluation{Accuracy: 0.8, LogLoss: 0.4, ROCAUC: 0.9, TrainRows: 10, TestRows: 5},
	}
	require.NoError(t, nbaml.SaveArtifact(artifactPath, artifact))
	require.NoError(t, store.Save(nbaml.NewModelRun(artifact, artifactPath, "2023-24")))

	var model map[string]any
	assert.Equal(t, http.StatusOK, get(t, s, "/model", &model))
	assert.Equal(t, "run-1", model["id"])
	assert.Equal(t, []any{nbaml.ColMeanPointDiffRoll10}, model["feature_columns"])

	var run nbaml.ModelRun
	assert.Equal(t, http.StatusOK, get(t, s, "/runs/latest", &run))
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, artifactPath, run.ArtifactPath)
}

func TestOddsPredictedOnDemand(t *testing.T) {
	day := time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC)
	var games []nbaml.GameRow
	for d := 0; d < 6; d++ {
		id := "00224000" + string(rune('0'+d))
		date := day.AddDate(0, 0, d)
		games = append(games,
			nbaml.GameRow{GameID: id, GameDate: date, TeamID: 1, TeamAbbreviation: "OKC", Matchup: "OKC vs. WAS", Points: 120},
			nbaml.GameRow{GameID: id, GameDate: date, TeamID: 2, TeamAbbreviation: "WAS", Matchup: "WAS @ OKC", Points: 100 + d},
		)
	}
	s, store, artifactPath := newTestServer(t, staticSource{"2024-25": games})

	artifact := &nbaml.ModelArtifact{
		ID:             "run-2",
		FeatureColumns: []string{nbaml.ColMeanPointDiffRoll10},
		Classifier:     nbaml.LogisticModel{Weights: []float64{1}, Means: []float64{0}, Scales: []float64{10}},
		Metrics:        nbaml.Evaluation{ROCAUC: 0.5},
	}
	require.NoError(t, nbaml.SaveArtifact(artifactPath, artifact))

	var odds []nbaml.ChampionOdds
	assert.Equal(t, http.StatusOK, get(t, s, "/seasons/2024-25/odds", &odds))
	require.Len(t, odds, 2)
	assert.Equal(t, "OKC", odds[0].TeamAbbreviation)
	assert.Greater(t, odds[0].ChampionProb, odds[1].ChampionProb)
	assert.Equal(t, "run-2", odds[0].ModelID)

	stored, err := store.LoadChampionOdds("2024-25")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestStartStopsOnCancel(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
