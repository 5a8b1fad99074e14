package synth

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

const maxAgeDays = 30

// analyte is the normal distribution one measurement is drawn from.
type analyte struct {
	name string
	mean float64
	std  float64
}

// Reference cohort distributions, matching the training data generator.
var analytes = []analyte{
	{"glucose", 95, 10},
	{"hemoglobin", 14, 1.2},
	{"wbc", 7, 2},
	{"creatinine", 1, 0.2},
	{"bun", 14, 4},
	{"crp", 3, 2},
	{"hba1c", 5.5, 0.5},
}

// Anomaly injection multipliers, applied to the injected fraction of panels.
var injections = map[string]float64{
	"glucose":    1.5,
	"wbc":        2.0,
	"creatinine": 2.0,
}

// Config controls one synthetic batch.
type Config struct {
	Count           int
	Clinics         int
	AnomalyFraction float64
	Seed            int64
}

// Panel is one generated lab submission. Age is how far in the past the
// panel is dated, spread over the last 30 days like the reference cohort.
type Panel struct {
	Values   map[string]float64
	ClinicID string
	Age      time.Duration
	Injected bool
}

// Generate produces a reproducible batch of synthetic lab panels spread
// across the configured number of clinics, with anomalies injected into a
// fraction of them by inflating glucose, wbc, and creatinine.
func Generate(cfg Config) ([]Panel, error) {
	if cfg.Count < 1 {
		return nil, errors.Errorf("count must be positive, got: %d", cfg.Count)
	}
	if cfg.Clinics < 1 {
		return nil, errors.Errorf("clinics must be positive, got: %d", cfg.Clinics)
	}
	if cfg.AnomalyFraction < 0 || cfg.AnomalyFraction > 1 {
		return nil, errors.Errorf("anomaly fraction must be in [0,1], got: %f", cfg.AnomalyFraction)
	}

	rnd := rand.New(rand.NewSource(cfg.Seed))
	injected := int(float64(cfg.Count) * cfg.AnomalyFraction)

	panels := make([]Panel, cfg.Count)
	for i := range panels {
		values := make(map[string]float64, len(analytes))
		for _, a := range analytes {
			v := rnd.NormFloat64()*a.std + a.mean
			if v < 0 {
				v = 0
			}
			values[a.name] = v
		}

		p := Panel{
			Values:   values,
			ClinicID: fmt.Sprintf("clinic-%d", rnd.Intn(cfg.Clinics)+1),
			Age:      time.Duration(rnd.Intn(maxAgeDays*24)) * time.Hour,
		}

		if i < injected {
			for name, multiplier := range injections {
				p.Values[name] *= multiplier
			}
			p.Injected = true
		}

		panels[i] = p
	}

	// Injection order is deterministic, shuffle so anomalies are not
	// front-loaded in the batch.
	rnd.Shuffle(len(panels), func(i, j int) {
		panels[i], panels[j] = panels[j], panels[i]
	})

	return panels, nil
}
