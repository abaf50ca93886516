package nbaml

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

const probEpsilon = 1e-15

// Evaluation holds held-out metrics. ROCAUC is NaN when the test split has one class.
type Evaluation struct {
	Accuracy  float64 `json:"accuracy"`
	LogLoss   float64 `json:"log_loss"`
	ROCAUC    float64 `json:"roc_auc"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// evaluationJSON stores a NaN AUC as null, which encoding/json cannot write directly
type evaluationJSON struct {
	Accuracy  float64  `json:"accuracy"`
	LogLoss   float64  `json:"log_loss"`
	ROCAUC    *float64 `json:"roc_auc"`
	TrainRows int      `json:"train_rows"`
	TestRows  int      `json:"test_rows"`
}

func (e Evaluation) MarshalJSON() ([]byte, error) {
	out := evaluationJSON{Accuracy: e.Accuracy, LogLoss: e.LogLoss, TrainRows: e.TrainRows, TestRows: e.TestRows}
	if !math.IsNaN(e.ROCAUC) {
		auc := e.ROCAUC
		out.ROCAUC = &auc
	}
	return json.Marshal(out)
}

func (e *Evaluation) UnmarshalJSON(data []byte) error {
	var in evaluationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Evaluation{Accuracy: in.Accuracy, LogLoss: in.LogLoss, ROCAUC: math.NaN(), TrainRows: in.TrainRows, TestRows: in.TestRows}
	if in.ROCAUC != nil {
		e.ROCAUC = *in.ROCAUC
	}
	return nil
}

// AUCDefined reports whether ROCAUC holds a value
func (e Evaluation) AUCDefined() bool {
	return !math.IsNaN(e.ROCAUC)
}

func (e Evaluation) String() string {
	auc := "undefined"
	if e.AUCDefined() {
		auc = fmt.Sprintf("%.3f", e.ROCAUC)
	}
	return fmt.Sprintf("accuracy=%.3f log_loss=%.3f roc_auc=%s (train=%d test=%d)", e.Accuracy, e.LogLoss, auc, e.TrainRows, e.TestRows)
}

func clipProb(p float64) float64 {
	return math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
}

func pointLogLoss(y, p float64) float64 {
	p = clipProb(p)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// Accuracy is the share of rows where p >= 0.5 agrees with the label
func Accuracy(y []int, prob []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	correct := 0
	for i, p := range prob {
		pred := 0
		if p >= 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// LogLoss is the mean binary cross-entropy with probabilities clipped away from 0 and 1
func LogLoss(y []int, prob []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	total := 0.0
	for i, p := range prob {
		total += pointLogLoss(float64(y[i]), p)
	}
	return total / float64(len(y))
}

// ROCAUC is the Mann-Whitney statistic with tied scores given their average rank.
// Returns NaN unless both classes are present.
func ROCAUC(y []int, prob []float64) float64 {
	n := len(y)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return prob[order[a]] < prob[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && prob[order[j+1]] == prob[order[i]] {
			j++
		}
		avg := float64(i+j)/2.0 + 1.0
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	pos, neg := 0, 0
	rankSum := 0.0
	for i, v := range y {
		if v == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return math.NaN()
	}
	return (rankSum - float64(pos*(pos+1))/2.0) / float64(pos*neg)
}

// Evaluate computes accuracy at 0.5, log-loss and ROC-AUC
func Evaluate(y []int, prob []float64) Evaluation {
	return Evaluation{
		Accuracy: Accuracy(y, prob),
		LogLoss:  LogLoss(y, prob),
		ROCAUC:   ROCAUC(y, prob),
		TestRows: len(y),
	}
}
