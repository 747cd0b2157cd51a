package pattern

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// LoadRuleSetYAML decodes and validates a rule set. Missing thresholds take the defaults.
func LoadRuleSetYAML(r io.Reader) (model.DetectionRuleSet, error) {
	var rs model.DetectionRuleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return model.DetectionRuleSet{}, fmt.Errorf("failed to decode rule set: %w", err)
	}

	def := model.DefaultSettings()
	if rs.Settings.MinConfidenceThreshold == 0 {
		rs.Settings.MinConfidenceThreshold = def.MinConfidenceThreshold
	}
	if rs.Settings.FuzzyMatchThreshold == 0 {
		rs.Settings.FuzzyMatchThreshold = def.FuzzyMatchThreshold
	}

	if err := ValidateRuleSet(rs); err != nil {
		return model.DetectionRuleSet{}, err
	}
	return rs, nil
}

// WriteRuleSetYAML encodes a rule set for editing.
func WriteRuleSetYAML(w io.Writer, rs model.DetectionRuleSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rs); err != nil {
		return fmt.Errorf("failed to encode rule set: %w", err)
	}
	return enc.Close()
}
