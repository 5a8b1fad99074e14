package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainTopThree(t *testing.T) {
	features := []string{"glucose", "hemoglobin", "wbc", "creatinine"}
	z := map[string]float64{"glucose": 0.5, "hemoglobin": -3.2, "wbc": 1.1, "creatinine": 2.4}
	payload := map[string]float64{"glucose": 100, "hemoglobin": 10, "wbc": 9, "creatinine": 1.5}

	entries := Explain(z, payload, features)
	require.Len(t, entries, 3)

	assert.Equal(t, "hemoglobin", entries[0].Feature)
	assert.Equal(t, "creatinine", entries[1].Feature)
	assert.Equal(t, "wbc", entries[2].Feature)

	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, math.Abs(entries[i-1].Z), math.Abs(entries[i].Z))
	}
}

func TestExplainTieBreaksOnFeatureOrder(t *testing.T) {
	features := []string{"glucose", "hemoglobin", "wbc"}
	z := map[string]float64{"glucose": 1.0, "hemoglobin": -1.0, "wbc": 1.0}
	payload := map[string]float64{"glucose": 1, "hemoglobin": 2, "wbc": 3}

	entries := Explain(z, payload, features)
	require.Len(t, entries, 3)
	assert.Equal(t, "glucose", entries[0].Feature)
	assert.Equal(t, "hemoglobin", entries[1].Feature)
	assert.Equal(t, "wbc", entries[2].Feature)
}

func TestExplainRoundsToThreeDecimals(t *testing.T) {
	features := []string{"glucose"}
	z := map[string]float64{"glucose": 1.23456}
	payload := map[string]float64{"glucose": 107}

	entries := Explain(z, payload, features)
	require.Len(t, entries, 1)
	assert.Equal(t, 1.235, entries[0].Z)
	assert.Equal(t, 107.0, entries[0].Value)
}

func TestExplainFewerFeaturesThanTopK(t *testing.T) {
	features := []string{"glucose", "wbc"}
	z := map[string]float64{"glucose": 0.1, "wbc": -0.4}
	payload := map[string]float64{"glucose": 96, "wbc": 6.2}

	entries := Explain(z, payload, features)
	require.Len(t, entries, 2)
	assert.Equal(t, "wbc", entries[0].Feature)
}
