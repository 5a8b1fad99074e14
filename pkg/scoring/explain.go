package scoring

import (
	"math"
	"sort"
)

// ExplainTopK is the number of features included in each explanation.
const ExplainTopK = 3

// Entry is one feature in a prediction's rationale.
type Entry struct {
	Feature string  `json:"feature" yaml:"feature"`
	Value   float64 `json:"value" yaml:"value"`
	Z       float64 `json:"z" yaml:"z"`
}

// Explain ranks features by absolute z-score and returns the top entries,
// annotated with the submitted value and the z-score rounded to 3 decimals.
// The sort is stable over the feature declaration order, so exact ties rank
// the earlier-declared feature first.
func Explain(z map[string]float64, payload map[string]float64, features []string) []Entry {
	entries := make([]Entry, 0, len(features))
	for _, name := range features {
		entries = append(entries, Entry{Feature: name, Value: payload[name], Z: z[name]})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].Z) > math.Abs(entries[j].Z)
	})

	if len(entries) > ExplainTopK {
		entries = entries[:ExplainTopK]
	}
	for i := range entries {
		entries[i].Z = math.Round(entries[i].Z*1000) / 1000
	}
	return entries
}
