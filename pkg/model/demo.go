package model

// Feature indexes in the demo artifact's schema.
const (
	demoGlucose = iota
	demoHemoglobin
	demoWBC
	demoCreatinine
	demoBUN
	demoCRP
	demoHbA1c
)

// demoChain builds a classifier tree that checks three conditions in
// sequence, returning the high probability as soon as one trips.
func demoChain(f1 int, t1 float64, f2 int, t2 float64, f3 int, t3 float64, high, low float64) Tree {
	return Tree{
		Feature:   []int{f1, f2, leafNode, f3, leafNode, leafNode, leafNode},
		Threshold: []float64{t1, t2, 0, t3, 0, 0, 0},
		Left:      []int{1, 3, 0, 5, 0, 0, 0},
		Right:     []int{2, 4, 0, 6, 0, 0, 0},
		Value:     []float64{0, 0, high, 0, high, low, high},
	}
}

// demoIsoTree builds an isolation tree that sends rare high readings of two
// analytes into shallow small-sample leaves.
func demoIsoTree(f1 int, t1 float64, s1 int, f2 int, t2 float64, s2, normal, rare int) Tree {
	return Tree{
		Feature:   []int{f1, f2, leafNode, leafNode, leafNode},
		Threshold: []float64{t1, t2, 0, 0, 0},
		Left:      []int{1, 3, 0, 0, 0},
		Right:     []int{2, 4, 0, 0, 0},
		Samples:   []int{64, s1, s2, normal, rare},
	}
}

// Demo returns a small hand-built artifact over the standard seven-analyte
// panel. Its stumps encode the labeling rule used on the synthetic training
// cohort (glucose > 140, wbc > 14, creatinine > 1.8), which makes it useful
// for tests, local demos, and the simulate command without shipping a real
// trained bundle.
func Demo() *Artifact {
	return &Artifact{
		Version:  1,
		Features: []string{"glucose", "hemoglobin", "wbc", "creatinine", "bun", "crp", "hba1c"},
		Median: map[string]float64{
			"glucose": 95, "hemoglobin": 14, "wbc": 7,
			"creatinine": 1.0, "bun": 14, "crp": 3, "hba1c": 5.5,
		},
		Std: map[string]float64{
			"glucose": 10, "hemoglobin": 1.2, "wbc": 2,
			"creatinine": 0.2, "bun": 4, "crp": 2, "hba1c": 0.5,
		},
		Classifier: &Forest{
			Trees: []Tree{
				demoChain(demoCreatinine, 1.8, demoGlucose, 140, demoWBC, 14, 0.94, 0.05),
				demoChain(demoGlucose, 140, demoWBC, 14, demoCreatinine, 1.8, 0.90, 0.07),
				demoChain(demoWBC, 14, demoCreatinine, 1.8, demoGlucose, 140, 0.88, 0.06),
			},
		},
		Isolation: &IsolationForest{
			Trees: []Tree{
				demoIsoTree(demoGlucose, 140, 60, demoWBC, 14, 4, 56, 4),
				demoIsoTree(demoCreatinine, 1.8, 59, demoBUN, 25, 5, 55, 4),
				demoIsoTree(demoCRP, 10, 58, demoHbA1c, 8, 6, 54, 4),
			},
			Subsample: 64,
			Offset:    -0.46,
		},
	}
}
