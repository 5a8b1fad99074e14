package model

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ArtifactFileName is the default model artifact file name.
const ArtifactFileName = "model.json"

// Artifact is the trained model bundle produced by the offline training
// pipeline: the feature schema with per-feature medians and standard
// deviations, the supervised classifier, and the isolation forest. It is
// loaded once at process start and never mutated, so it is safe to share
// across concurrent requests without locking.
type Artifact struct {
	Version    int                `json:"version"`
	Features   []string           `json:"features"`
	Median     map[string]float64 `json:"median"`
	Std        map[string]float64 `json:"std"`
	Classifier *Forest            `json:"classifier"`
	Isolation  *IsolationForest   `json:"isolation"`
}

// Load reads and validates a model artifact. Any failure here is fatal to
// the caller: a service without a loadable model must refuse to start.
func Load(path string) (*Artifact, error) {
	if path == "" {
		return nil, errors.New("artifact path not specified")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model artifact: %s", path)
	}

	a := &Artifact{}
	if err := json.Unmarshal(b, a); err != nil {
		return nil, errors.Wrapf(err, "corrupt model artifact: %s", path)
	}

	if err := a.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid model artifact: %s", path)
	}

	log.Debugf("model artifact loaded: %d features, %d classifier trees, %d isolation trees",
		len(a.Features), len(a.Classifier.Trees), len(a.Isolation.Trees))

	return a, nil
}

// Save writes the artifact as indented JSON.
func (a *Artifact) Save(path string) error {
	if path == "" {
		return errors.New("artifact path not specified")
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize model artifact")
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return errors.Wrapf(err, "failed to write model artifact: %s", path)
	}
	return nil
}

// Classify returns the supervised anomaly probability in [0,1] for a
// feature vector ordered per the artifact's feature list.
func (a *Artifact) Classify(vector []float64) float64 {
	return a.Classifier.proba(vector)
}

// OutlierScore returns the isolation forest anomaly score (higher = more
// anomalous) and the model's boundary decision for the vector.
func (a *Artifact) OutlierScore(vector []float64) (float64, bool) {
	return a.Isolation.score(vector)
}

func (a *Artifact) validate() error {
	if len(a.Features) == 0 {
		return errors.New("artifact has no features")
	}

	for _, name := range a.Features {
		if _, ok := a.Median[name]; !ok {
			return errors.Errorf("median missing for feature: %s", name)
		}
		s, ok := a.Std[name]
		if !ok {
			return errors.Errorf("std missing for feature: %s", name)
		}
		if s < 0 {
			return errors.Errorf("negative std for feature: %s", name)
		}
	}

	if a.Classifier == nil || len(a.Classifier.Trees) == 0 {
		return errors.New("artifact has no classifier trees")
	}
	for i := range a.Classifier.Trees {
		if err := a.Classifier.Trees[i].validate(len(a.Features), true); err != nil {
			return errors.Wrapf(err, "classifier tree %d", i)
		}
	}

	if a.Isolation == nil || len(a.Isolation.Trees) == 0 {
		return errors.New("artifact has no isolation trees")
	}
	if a.Isolation.Subsample < 2 {
		return errors.Errorf("invalid isolation subsample size: %d", a.Isolation.Subsample)
	}
	for i := range a.Isolation.Trees {
		if err := a.Isolation.Trees[i].validate(len(a.Features), false); err != nil {
			return errors.Wrapf(err, "isolation tree %d", i)
		}
	}

	return nil
}
