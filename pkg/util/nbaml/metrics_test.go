package nbaml

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedSplit(t *testing.T) {
	labels := []int{0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 1, 1}
	train, test, err := StratifiedSplit(labels, 0.3, 42)
	require.NoError(t, err)

	assert.Len(t, test, 4) // round(10*0.3) negatives + round(4*0.3) positives
	assert.Len(t, train, 10)
	assert.IsIncreasing(t, train)
	assert.IsIncreasing(t, test)

	seen := map[int]bool{}
	positives := 0
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d assigned twice", i)
		seen[i] = true
	}
	for _, i := range test {
		positives += labels[i]
	}
	assert.Len(t, seen, len(labels))
	assert.Equal(t, 1, positives)

	train2, test2, err := StratifiedSplit(labels, 0.3, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestStratifiedSplitKeepsEachClassOnBothSides(t *testing.T) {
	labels := []int{0, 0, 1, 1, 0}
	train, test, err := StratifiedSplit(labels, 0.05, 7)
	require.NoError(t, err)
	assert.Len(t, test, 2)
	assert.Len(t, train, 3)
}

func TestStratifiedSplitErrors(t *testing.T) {
	_, _, err := StratifiedSplit([]int{0, 0, 0, 1}, 0.3, 42)
	assert.ErrorIs(t, err, ErrNoUsableData)

	_, _, err = StratifiedSplit([]int{0, 0, 1, 1}, 1.0, 42)
	assert.Error(t, err)
}

func TestAccuracyAndLogLoss(t *testing.T) {
	y := []int{1, 0, 1, 0}
	prob := []float64{0.9, 0.2, 0.5, 0.7}
	assert.Equal(t, 0.75, Accuracy(y, prob))

	want := -(math.Log(0.9) + math.Log(0.8) + math.Log(0.5) + math.Log(0.3)) / 4
	assert.InDelta(t, want, LogLoss(y, prob), 1e-12)

	// certain and wrong is clipped rather than infinite
	loss := LogLoss([]int{0}, []float64{1})
	assert.False(t, math.IsInf(loss, 1))
	assert.InDelta(t, -math.Log(1e-15), loss, 1e-2)
}

func TestROCAUC(t *testing.T) {
	assert.Equal(t, 1.0, ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}))
	assert.Equal(t, 0.0, ROCAUC([]int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9}))
	assert.Equal(t, 0.5, ROCAUC([]int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}))
	assert.InDelta(t, 0.75, ROCAUC([]int{0, 1, 0, 1}, []float64{0.1, 0.4, 0.5, 0.8}), 1e-12)
	assert.True(t, math.IsNaN(ROCAUC([]int{0, 0, 0}, []float64{0.1, 0.2, 0.3})))
}

func TestEvaluationWritesUndefinedAUCAsNull(t *testing.T) {
	eval := Evaluate([]int{0, 0}, []float64{0.2, 0.6})
	assert.False(t, eval.AUCDefined())
	assert.Contains(t, eval.String(), "roc_auc=undefined")

	data, err := json.Marshal(eval)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"roc_auc":null`)

	var back Evaluation
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(back.ROCAUC))
	assert.Equal(t, 0.5, back.Accuracy)
	assert.Equal(t, 2, back.TestRows)
}
