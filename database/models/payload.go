package models

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// VerificationPayload is the score record produced by the external scoring
// services. The named fields are required; anything else the producer sends
// is preserved in Extra so forward-compatible fields survive the round trip
// and stay part of the content hash.
type VerificationPayload struct {
	FinalScore      float64
	CO2AbsorbedKg   float64
	CarbonCredits   float64
	TreeCount       int
	ComponentScores map[string]float64
	Extra           map[string]any

	missing []string
}

const (
	payloadKeyFinalScore      = "final_score"
	payloadKeyCO2Absorbed     = "co2_absorbed_kg"
	payloadKeyCarbonCredits   = "carbon_credits"
	payloadKeyTreeCount       = "tree_count"
	payloadKeyComponentScores = "per_component_scores"
)

func (p VerificationPayload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 5+len(p.Extra))
	for k, v := range p.Extra {
		out[k] = v
	}
	out[payloadKeyFinalScore] = p.FinalScore
	out[payloadKeyCO2Absorbed] = p.CO2AbsorbedKg
	out[payloadKeyCarbonCredits] = p.CarbonCredits
	out[payloadKeyTreeCount] = p.TreeCount
	scores := p.ComponentScores
	if scores == nil {
		scores = map[string]float64{}
	}
	out[payloadKeyComponentScores] = scores
	return json.Marshal(out)
}

func (p *VerificationPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = VerificationPayload{}

	decode := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			p.missing = append(p.missing, key)
			return nil
		}
		delete(raw, key)
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		return nil
	}

	if err := decode(payloadKeyFinalScore, &p.FinalScore); err != nil {
		return err
	}
	if err := decode(payloadKeyCO2Absorbed, &p.CO2AbsorbedKg); err != nil {
		return err
	}
	if err := decode(payloadKeyCarbonCredits, &p.CarbonCredits); err != nil {
		return err
	}
	if err := decode(payloadKeyTreeCount, &p.TreeCount); err != nil {
		return err
	}
	if err := decode(payloadKeyComponentScores, &p.ComponentScores); err != nil {
		return err
	}

	if len(raw) > 0 {
		p.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("field %s: %w", k, err)
			}
			p.Extra[k] = val
		}
	}

	return nil
}

// Validate checks structural well-formedness: required fields present and
// scores in range. Score semantics beyond that belong to the scoring
// services, not the ledger.
func (p *VerificationPayload) Validate() error {
	if len(p.missing) > 0 {
		return fmt.Errorf("missing required fields: %v", p.missing)
	}
	if p.FinalScore < 0 || p.FinalScore > 1 {
		return errors.New("final_score must be within [0, 1]")
	}
	if p.CO2AbsorbedKg < 0 {
		return errors.New("co2_absorbed_kg must be non-negative")
	}
	if p.CarbonCredits < 0 {
		return errors.New("carbon_credits must be non-negative")
	}
	if p.TreeCount < 0 {
		return errors.New("tree_count must be non-negative")
	}
	for name, score := range p.ComponentScores {
		if score < 0 || score > 1 {
			return fmt.Errorf("component score %s must be within [0, 1]", name)
		}
	}
	return nil
}
