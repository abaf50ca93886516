package nbaml

import (
	"fmt"
	"math"

	"github.com/richard-senior/nbaml/internal/logger"
)

// ProbabilityClassifier is any binary model that yields P(y=1) per row
type ProbabilityClassifier interface {
	Fit(x [][]float64, y []int) error
	PredictProba(x [][]float64) ([]float64, error)
}

// LogisticOptions controls the gradient descent fit
type LogisticOptions struct {
	MaxIterations int     `json:"max_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	Tolerance     float64 `json:"tolerance"`
	C             float64 `json:"c"`        // inverse L2 strength; the intercept is not penalised
	Balanced      bool    `json:"balanced"` // weight each class by n / (2 * n_class)
}

// LogisticOptionsFromConfig reads the fit settings out of the global configuration
func LogisticOptionsFromConfig() LogisticOptions {
	return LogisticOptions{
		MaxIterations: Config.MaxIterations,
		LearningRate:  Config.LearningRate,
		Tolerance:     Config.Tolerance,
		C:             Config.L2C,
		Balanced:      true,
	}
}

// LogisticModel is the fitted state, serialised as part of the model artifact.
// Inputs are standardised with Means and Scales before the linear term.
type LogisticModel struct {
	Weights    []float64       `json:"weights"`
	Intercept  float64         `json:"intercept"`
	Means      []float64       `json:"means"`
	Scales     []float64       `json:"scales"`
	Iterations int             `json:"iterations"`
	Converged  bool            `json:"converged"`
	Options    LogisticOptions `json:"options"`
}

// LogisticRegression fits a LogisticModel by deterministic batch gradient descent
type LogisticRegression struct {
	Options LogisticOptions
	Model   *LogisticModel
}

var _ ProbabilityClassifier = (*LogisticRegression)(nil)

func NewLogisticRegression(opts LogisticOptions) *LogisticRegression {
	return &LogisticRegression{Options: opts}
}

// sigmoid without overflow for large |z|
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func checkMatrix(x [][]float64) (int, error) {
	if len(x) == 0 {
		return 0, fmt.Errorf("empty feature matrix")
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}
	return width, nil
}

// standardise computes column means and population standard deviations.
// Constant columns get a scale of 1.
func standardise(x [][]float64, width int) (means, scales []float64) {
	n := float64(len(x))
	means = make([]float64, width)
	scales = make([]float64, width)
	for _, row := range x {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			d := v - means[j]
			scales[j] += d * d
		}
	}
	for j := range scales {
		scales[j] = math.Sqrt(scales[j] / n)
		if scales[j] == 0 {
			scales[j] = 1
		}
	}
	return means, scales
}

func (m *LogisticModel) transform(row []float64) []float64 {
	z := make([]float64, len(row))
	for j, v := range row {
		z[j] = (v - m.Means[j]) / m.Scales[j]
	}
	return z
}

// classWeights returns a weight per sample
func classWeights(y []int, balanced bool) []float64 {
	w := make([]float64, len(y))
	counts := [2]int{}
	for _, v := range y {
		counts[v]++
	}
	n := float64(len(y))
	for i, v := range y {
		w[i] = 1.0
		if balanced && counts[v] > 0 {
			w[i] = n / (2.0 * float64(counts[v]))
		}
	}
	return w
}

// Fit minimises the mean weighted log-loss plus ||w||^2 / (2*C*n)
func (lr *LogisticRegression) Fit(x [][]float64, y []int) error {
	width, err := checkMatrix(x)
	if err != nil {
		return err
	}
	if len(y) != len(x) {
		return fmt.Errorf("have %d labels for %d rows", len(y), len(x))
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("label %d at row %d is not binary", v, i)
		}
	}
	opts := lr.Options
	if opts.MaxIterations < 1 || opts.LearningRate <= 0 || opts.C <= 0 {
		return fmt.Errorf("invalid logistic options %+v", opts)
	}

	means, scales := standardise(x, width)
	model := &LogisticModel{
		Weights: make([]float64, width),
		Means:   means,
		Scales:  scales,
		Options: opts,
	}
	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = model.transform(row)
	}
	sw := classWeights(y, opts.Balanced)
	n := float64(len(x))
	penalty := 1.0 / (opts.C * n)

	prevLoss := math.Inf(1)
	gradW := make([]float64, width)
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB, loss := 0.0, 0.0
		for i, row := range z {
			p := sigmoid(dot(model.Weights, row) + model.Intercept)
			e := sw[i] * (p - float64(y[i]))
			for j, v := range row {
				gradW[j] += e * v
			}
			gradB += e
			loss += sw[i] * pointLogLoss(float64(y[i]), p)
		}
		loss /= n
		for j, w := range model.Weights {
			loss += 0.5 * penalty * w * w
			gradW[j] = gradW[j]/n + penalty*w
		}
		gradB /= n

		for j := range model.Weights {
			model.Weights[j] -= opts.LearningRate * gradW[j]
		}
		model.Intercept -= opts.LearningRate * gradB
		model.Iterations = iter

		if math.Abs(prevLoss-loss) < opts.Tolerance {
			model.Converged = true
			break
		}
		prevLoss = loss
	}

	if !model.Converged {
		logger.Warn("Logistic regression hit the iteration cap", model.Iterations)
	}
	logger.Debug("Fitted logistic regression", model.Iterations, model.Weights, model.Intercept)
	lr.Model = model
	return nil
}

// PredictProba scores rows with the fitted model
func (lr *LogisticRegression) PredictProba(x [][]float64) ([]float64, error) {
	if lr.Model == nil {
		return nil, fmt.Errorf("logistic regression is not fitted")
	}
	return lr.Model.PredictProba(x)
}

// PredictProba scores rows; each row must have one value per weight
func (m *LogisticModel) PredictProba(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(m.Weights) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(m.Weights))
		}
		out[i] = sigmoid(dot(m.Weights, m.transform(row)) + m.Intercept)
	}
	return out, nil
}

// Validate checks the fitted state is internally consistent
func (m *LogisticModel) Validate() error {
	w := len(m.Weights)
	if w == 0 {
		return fmt.Errorf("model has no weights")
	}
	if len(m.Means) != w || len(m.Scales) != w {
		return fmt.Errorf("model has %d weights but %d means and %d scales", w, len(m.Means), len(m.Scales))
	}
	for j, s := range m.Scales {
		if s == 0 || math.IsNaN(s) {
			return fmt.Errorf("model scale %d is %v", j, s)
		}
	}
	return nil
}
