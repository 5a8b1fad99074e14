package cli

import (
	"testing"

	"github.com/amanicare/labwatch/pkg/data"
	"github.com/amanicare/labwatch/pkg/model"
	"github.com/amanicare/labwatch/pkg/scoring"
	"github.com/amanicare/labwatch/pkg/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateInto(t *testing.T) {
	_, db := testRouter(t)

	cfg := synth.Config{
		Count:           40,
		Clinics:         2,
		AnomalyFraction: 0.25,
		Seed:            42,
	}

	flagged, err := simulateInto(db, scoring.NewScorer(model.Demo()), cfg)
	require.NoError(t, err)

	list, err := data.ListPredictions(db, "", data.ListLimitMax)
	require.NoError(t, err)
	assert.Len(t, list, cfg.Count)

	// injected panels inflate glucose, wbc, and creatinine; at least some
	// must cross the classifier's thresholds
	assert.GreaterOrEqual(t, flagged, 1)
	assert.LessOrEqual(t, flagged, 10)

	for _, p := range list {
		assert.Contains(t, []string{"clinic-1", "clinic-2"}, p.ClinicID)
	}
}

func TestSimulateIntoBadConfig(t *testing.T) {
	_, db := testRouter(t)

	_, err := simulateInto(db, scoring.NewScorer(model.Demo()), synth.Config{Count: 0, Clinics: 1})
	assert.Error(t, err)
}
