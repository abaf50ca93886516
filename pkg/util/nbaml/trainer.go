package nbaml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/richard-senior/nbaml/internal/logger"
)

// ModelArtifact bundles a fitted classifier with the ordered feature columns it was
// trained on. The two are only ever saved and loaded together.
type ModelArtifact struct {
	ID             string        `json:"id"`
	CreatedAt      time.Time     `json:"created_at"`
	FeatureColumns []string      `json:"feature_columns"`
	Classifier     LogisticModel `json:"classifier"`
	Metrics        Evaluation    `json:"metrics"`
}

// Validate rejects artifacts whose column contract does not match the classifier
func (a *ModelArtifact) Validate() error {
	if len(a.FeatureColumns) == 0 {
		return fmt.Errorf("model artifact %s has no feature columns", a.ID)
	}
	if err := a.Classifier.Validate(); err != nil {
		return fmt.Errorf("model artifact %s: %w", a.ID, err)
	}
	if len(a.Classifier.Weights) != len(a.FeatureColumns) {
		return fmt.Errorf("model artifact %s has %d columns but %d weights", a.ID, len(a.FeatureColumns), len(a.Classifier.Weights))
	}
	return nil
}

// PredictRows projects rows onto the artifact's columns, in order, and scores them
func (a *ModelArtifact) PredictRows(rows []TeamSeasonRow) ([]float64, error) {
	x, err := ProjectFeatures(rows, a.FeatureColumns)
	if err != nil {
		return nil, err
	}
	return a.Classifier.PredictProba(x)
}

// SaveArtifact writes the artifact as a single JSON document
func SaveArtifact(path string, a *ModelArtifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model artifact %s: %w", path, err)
	}
	logger.Info("Saved model artifact", path)
	return nil
}

// LoadArtifact reads and validates an artifact written by SaveArtifact
func LoadArtifact(path string) (*ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{What: "model artifact", Path: path}
		}
		return nil, fmt.Errorf("failed to read model artifact %s: %w", path, err)
	}
	var a ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// ProjectFeatures builds the design matrix for columns, in order.
// An unknown column or a missing value is a SchemaError.
func ProjectFeatures(rows []TeamSeasonRow, columns []string) ([][]float64, error) {
	x := make([][]float64, len(rows))
	for i, r := range rows {
		vec := make([]float64, len(columns))
		for j, col := range columns {
			v, ok := r.Feature(col)
			if !ok {
				return nil, &SchemaError{Table: "team_season", Missing: []string{col}}
			}
			if v == nil {
				return nil, &SchemaError{Table: "team_season", Detail: fmt.Sprintf("%s %s has no %s", r.TeamAbbreviation, r.Season, col)}
			}
			vec[j] = *v
		}
		x[i] = vec
	}
	return x, nil
}

// completeRows keeps rows with a value for every column
func completeRows(rows []TrainingRow, columns []string) []TrainingRow {
	out := make([]TrainingRow, 0, len(rows))
	for _, r := range rows {
		complete := true
		for _, col := range columns {
			if v, ok := r.Feature(col); !ok || v == nil {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, r)
		} else {
			logger.Warn("Skipping team-season with missing features", r.TeamAbbreviation, r.Season)
		}
	}
	return out
}

// Trainer fits and evaluates the champion classifier
type Trainer struct {
	Columns      []string
	TestFraction float64
	Seed         int64
	TopN         int
	Options      LogisticOptions
}

// NewTrainer returns a Trainer configured from the global configuration
func NewTrainer() *Trainer {
	return &Trainer{
		Columns:      append([]string(nil), FeatureColumns...),
		TestFraction: Config.TestFraction,
		Seed:         Config.Seed,
		TopN:         Config.TopN,
		Options:      LogisticOptionsFromConfig(),
	}
}

// Train splits rows, fits on the training part and evaluates on the held-out part
func (t *Trainer) Train(rows []TrainingRow) (*ModelArtifact, error) {
	rows = completeRows(rows, t.Columns)

	y := make([]int, len(rows))
	counts := [2]int{}
	for i, r := range rows {
		if r.IsChampion != 0 && r.IsChampion != 1 {
			return nil, fmt.Errorf("row %s %s has non-binary is_champion %d", r.TeamAbbreviation, r.Season, r.IsChampion)
		}
		y[i] = r.IsChampion
		counts[r.IsChampion]++
	}
	if counts[0] < 2 || counts[1] < 2 {
		return nil, fmt.Errorf("need at least 2 rows of each class, have %d negative and %d positive: %w", counts[0], counts[1], ErrNoUsableData)
	}

	trainIdx, testIdx, err := StratifiedSplit(y, t.TestFraction, t.Seed)
	if err != nil {
		return nil, err
	}
	pick := func(idx []int) ([]TrainingRow, []int) {
		r := make([]TrainingRow, len(idx))
		l := make([]int, len(idx))
		for k, i := range idx {
			r[k], l[k] = rows[i], y[i]
		}
		return r, l
	}
	trainRows, trainY := pick(trainIdx)
	testRows, testY := pick(testIdx)
	logger.Info("Split training table", len(trainRows), "train /", len(testRows), "test")

	trainX, err := ProjectFeatures(trainRows, t.Columns)
	if err != nil {
		return nil, err
	}
	testX, err := ProjectFeatures(testRows, t.Columns)
	if err != nil {
		return nil, err
	}

	clf := NewLogisticRegression(t.Options)
	if err := clf.Fit(trainX, trainY); err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}
	prob, err := clf.PredictProba(testX)
	if err != nil {
		return nil, err
	}

	eval := Evaluate(testY, prob)
	eval.TrainRows = len(trainRows)
	if !eval.AUCDefined() {
		logger.Warn("ROC-AUC undefined: test split has a single class")
	}
	logger.Highlight("Held-out evaluation", eval.String())
	t.logTopPredictions(testRows, prob)

	return &ModelArtifact{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		FeatureColumns: append([]string(nil), t.Columns...),
		Classifier:     *clf.Model,
		Metrics:        eval,
	}, nil
}

func (t *Trainer) logTopPredictions(rows []TrainingRow, prob []float64) {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return prob[order[a]] > prob[order[b]] })
	if t.TopN > 0 && len(order) > t.TopN {
		order = order[:t.TopN]
	}
	for rank, i := range order {
		logger.Info(fmt.Sprintf("%2d. %s %s p=%.3f champion=%d", rank+1, rows[i].Season, rows[i].TeamAbbreviation, prob[i], rows[i].IsChampion))
	}
}
