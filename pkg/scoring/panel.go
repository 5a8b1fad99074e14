package scoring

import (
	"github.com/pkg/errors"
)

// ClinicDefault is used when a panel does not name its originating clinic.
const ClinicDefault = "unknown"

// ErrInvalidField indicates a panel field that is not a number.
var ErrInvalidField = errors.New("panel field must be numeric")

// PanelDefaults is the recognized-fields-with-defaults table for the intake
// form. A submission that omits one of these analytes gets the default value
// rather than a rejection; the permissiveness is deliberate so partial
// panels remain processable. Features outside this table default to 0.
var PanelDefaults = map[string]float64{
	"glucose":    100.0,
	"hemoglobin": 14.0,
	"wbc":        7.0,
	"creatinine": 1.0,
	"bun":        14.0,
	"crp":        3.0,
	"hba1c":      5.5,
}

// BuildPayload resolves a raw panel submission into a complete feature to
// value map covering every feature the model expects. Recognized fields with
// a non-numeric value are rejected, unknown extra fields are ignored.
func BuildPayload(raw map[string]any, features []string) (map[string]float64, error) {
	payload := make(map[string]float64, len(features))
	for _, name := range features {
		v, ok := raw[name]
		if !ok {
			payload[name] = PanelDefaults[name]
			continue
		}
		fv, ok := v.(float64)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidField, "field: %s", name)
		}
		payload[name] = fv
	}
	return payload, nil
}
