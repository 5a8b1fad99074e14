package scoring

// Vector arranges the payload values into the fixed order the model pair
// was trained on.
func Vector(payload map[string]float64, features []string) []float64 {
	vector := make([]float64, len(features))
	for i, name := range features {
		vector[i] = payload[name]
	}
	return vector
}

// ZScores computes (value - median) / std for every feature. The trainer
// floors standard deviations away from zero, but a divisor of zero supplied
// by a stale or hand-edited stats bundle is floored to 1 here so the
// normalizer can never divide by zero.
func ZScores(payload map[string]float64, features []string, median, std map[string]float64) map[string]float64 {
	z := make(map[string]float64, len(features))
	for _, name := range features {
		s := std[name]
		if s == 0 {
			s = 1.0
		}
		z[name] = (payload[name] - median[name]) / s
	}
	return z
}
