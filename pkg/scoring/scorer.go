package scoring

import (
	"github.com/amanicare/labwatch/pkg/model"
)

// Result is one scored panel before persistence.
type Result struct {
	Anomaly     bool
	Score       float64
	IsoAnomaly  bool
	IsoScore    float64
	Explanation []Entry
	Payload     map[string]float64
}

// Scorer runs panels through the full pipeline: normalize, score with both
// models, explain. It holds only the immutable artifact and is safe for
// concurrent use.
type Scorer struct {
	artifact *model.Artifact
}

func NewScorer(a *model.Artifact) *Scorer {
	return &Scorer{artifact: a}
}

// Features returns the feature schema the scorer expects.
func (s *Scorer) Features() []string {
	return s.artifact.Features
}

// Score resolves the raw submission against the model's feature schema and
// scores it with both models. The anomaly label is the classifier
// probability crossing 0.5, the outlier label is the isolation forest's own
// boundary decision.
func (s *Scorer) Score(raw map[string]any) (*Result, error) {
	payload, err := BuildPayload(raw, s.artifact.Features)
	if err != nil {
		return nil, err
	}

	vector := Vector(payload, s.artifact.Features)
	proba := s.artifact.Classify(vector)
	isoScore, isOutlier := s.artifact.OutlierScore(vector)

	z := ZScores(payload, s.artifact.Features, s.artifact.Median, s.artifact.Std)

	return &Result{
		Anomaly:     proba > 0.5,
		Score:       proba,
		IsoAnomaly:  isOutlier,
		IsoScore:    isoScore,
		Explanation: Explain(z, payload, s.artifact.Features),
		Payload:     payload,
	}, nil
}
