package model

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// Leaf marker in the node arrays.
	leafNode = -1

	eulerGamma = 0.5772156649015329
)

// Tree is a single decision tree in flattened node-array form, the layout
// the offline trainer exports. Node i is internal when Feature[i] >= 0, in
// which case evaluation descends Left[i] when the feature value is <= the
// threshold, Right[i] otherwise. For classifier trees Value[i] holds the
// anomalous-class probability at node i. For isolation trees Samples[i]
// holds the training sample count that reached node i.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value,omitempty"`
	Samples   []int     `json:"samples,omitempty"`
}

// Forest is the supervised classifier ensemble.
type Forest struct {
	Trees []Tree `json:"trees"`
}

// IsolationForest is the unsupervised outlier ensemble. Subsample is the
// per-tree training sample size, Offset the decision boundary fitted by
// the trainer.
type IsolationForest struct {
	Trees     []Tree  `json:"trees"`
	Subsample int     `json:"subsample"`
	Offset    float64 `json:"offset"`
}

// walk descends from the root to a leaf and returns the leaf node index
// and its depth.
func (t *Tree) walk(vector []float64) (node, depth int) {
	for t.Feature[node] != leafNode {
		if vector[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
		depth++
	}
	return node, depth
}

// proba returns the mean anomalous-class probability across all trees.
// Leaf values are validated to [0,1] at load time so the mean is too.
func (f *Forest) proba(vector []float64) float64 {
	sum := 0.0
	for i := range f.Trees {
		node, _ := f.Trees[i].walk(vector)
		sum += f.Trees[i].Value[node]
	}
	return sum / float64(len(f.Trees))
}

// scoreSamples returns the sample anomaly score in (-1, 0): the closer to
// -1, the more isolated the point.
func (iso *IsolationForest) scoreSamples(vector []float64) float64 {
	sum := 0.0
	for i := range iso.Trees {
		node, depth := iso.Trees[i].walk(vector)
		sum += float64(depth) + avgPathLength(iso.Trees[i].Samples[node])
	}
	mean := sum / float64(len(iso.Trees))
	return -math.Pow(2, -mean/avgPathLength(iso.Subsample))
}

// score returns the anomaly magnitude (higher = more anomalous) and the
// model's native boundary decision.
func (iso *IsolationForest) score(vector []float64) (float64, bool) {
	decision := iso.scoreSamples(vector) - iso.Offset
	return -decision, decision < 0
}

// avgPathLength is the expected unsuccessful-search path length in a binary
// search tree over n samples, the isolation forest depth correction term.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		return 2*(math.Log(float64(n-1))+eulerGamma) - 2*float64(n-1)/float64(n)
	}
}

// validate checks structural consistency of the node arrays. Children are
// required to point forward so traversal always terminates.
func (t *Tree) validate(numFeatures int, classifier bool) error {
	n := len(t.Feature)
	if n == 0 {
		return errors.New("tree has no nodes")
	}
	if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n {
		return errors.New("tree node arrays have inconsistent lengths")
	}
	if classifier && len(t.Value) != n {
		return errors.New("classifier tree value array has inconsistent length")
	}
	if !classifier && len(t.Samples) != n {
		return errors.New("isolation tree samples array has inconsistent length")
	}

	for i := 0; i < n; i++ {
		if t.Feature[i] == leafNode {
			if classifier && (t.Value[i] < 0 || t.Value[i] > 1) {
				return errors.Errorf("leaf %d probability out of [0,1]: %f", i, t.Value[i])
			}
			if !classifier && t.Samples[i] < 1 {
				return errors.Errorf("leaf %d has no samples", i)
			}
			continue
		}
		if t.Feature[i] < 0 || t.Feature[i] >= numFeatures {
			return errors.Errorf("node %d references unknown feature index: %d", i, t.Feature[i])
		}
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return errors.Errorf("node %d has out of range children", i)
		}
	}

	return nil
}
