package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 0, LevenshteinDistance("celtics", "celtics"))
	assert.Equal(t, 4, LevenshteinDistance("", "heat"))
}

func TestFuzzyMatch(t *testing.T) {
	assert.Equal(t, 0, FuzzyMatch("Heat", "Miami Heat"))
	assert.Equal(t, 1.0, FuzzyMatchScore("Boston Celtics", "boston celtics"))
	assert.Greater(t, FuzzyMatchScore("Bostn Celtics", "Boston Celtics"), 0.8)
	assert.Less(t, FuzzyMatchScore("Utah Jazz", "Boston Celtics"), 0.8)
}

func TestGetAsString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"BOS", "BOS"},
		{42, "42"},
		{int64(1610612738), "1610612738"},
		{1610612738.0, "1610612738"},
		{112.5, "112.5"},
		{json.Number("0022300061"), "0022300061"},
		{true, "true"},
		{[]any{"LAL"}, "LAL"},
	}
	for _, tt := range tests {
		got, err := GetAsString(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := GetAsString(nil)
	assert.Error(t, err)
	_, err = GetAsString([]any{"a", "b"})
	assert.Error(t, err)
}

func TestNumericConversions(t *testing.T) {
	i, err := GetAsInt64(json.Number("1610612747"))
	require.NoError(t, err)
	assert.Equal(t, int64(1610612747), i)

	i, err = GetAsInt64(" 119 ")
	require.NoError(t, err)
	assert.Equal(t, int64(119), i)

	_, err = GetAsInt64(119.5)
	assert.Error(t, err)
	_, err = GetAsInt64(nil)
	assert.Error(t, err)

	n, err := GetAsInteger("2023")
	require.NoError(t, err)
	assert.Equal(t, 2023, n)
	_, err = GetAsInteger(int64(1) << 40)
	assert.Error(t, err)

	f, err := GetAsFloat(json.Number("104"))
	require.NoError(t, err)
	assert.Equal(t, 104.0, f)
	f, err = GetAsFloat("98.0")
	require.NoError(t, err)
	assert.Equal(t, 98.0, f)
	_, err = GetAsFloat("ninety")
	assert.Error(t, err)
	_, err = GetAsFloat(struct{}{})
	assert.Error(t, err)
}
