package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTripKeepsExtraFields(t *testing.T) {
	raw := []byte(`{
		"final_score": 0.91,
		"co2_absorbed_kg": 1520.5,
		"carbon_credits": 15.2,
		"tree_count": 340,
		"per_component_scores": {"ndvi": 0.88, "iot": 0.95},
		"sensor_vendor": "acme",
		"survey_pass": 2
	}`)

	var payload VerificationPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, payload.Validate())

	assert.Equal(t, 0.91, payload.FinalScore)
	assert.Equal(t, 340, payload.TreeCount)
	assert.Equal(t, 0.88, payload.ComponentScores["ndvi"])
	assert.Equal(t, "acme", payload.Extra["sensor_vendor"])

	out, err := json.Marshal(&payload)
	require.NoError(t, err)

	var again VerificationPayload
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, payload.FinalScore, again.FinalScore)
	assert.Equal(t, payload.ComponentScores, again.ComponentScores)
	assert.Equal(t, payload.Extra["sensor_vendor"], again.Extra["sensor_vendor"])
}

func TestPayloadValidateMissingFields(t *testing.T) {
	var payload VerificationPayload
	require.NoError(t, json.Unmarshal([]byte(`{"final_score": 0.5}`), &payload))

	err := payload.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required fields")
}

func TestPayloadValidateRanges(t *testing.T) {
	payload := VerificationPayload{FinalScore: 1.5}
	assert.ErrorContains(t, payload.Validate(), "final_score")

	payload = VerificationPayload{CO2AbsorbedKg: -1}
	assert.ErrorContains(t, payload.Validate(), "co2_absorbed_kg")

	payload = VerificationPayload{ComponentScores: map[string]float64{"ndvi": 2}}
	assert.ErrorContains(t, payload.Validate(), "ndvi")

	payload = VerificationPayload{
		FinalScore:      0.7,
		CO2AbsorbedKg:   10,
		CarbonCredits:   1,
		TreeCount:       5,
		ComponentScores: map[string]float64{"ndvi": 0.7},
	}
	assert.NoError(t, payload.Validate())
}
