package pattern

import (
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// ValidateRuleSet checks that a rule set can be used for detection.
func ValidateRuleSet(rs model.DetectionRuleSet) error {
	if strings.TrimSpace(rs.Name) == "" {
		return common.ValidationError("rule set name is required")
	}
	if len(rs.CategoryRules) == 0 {
		return common.ValidationError("rule set %q has no category rules", rs.Name)
	}
	if err := validateThreshold("min_confidence_threshold", rs.Settings.MinConfidenceThreshold); err != nil {
		return err
	}
	if err := validateThreshold("fuzzy_match_threshold", rs.Settings.FuzzyMatchThreshold); err != nil {
		return err
	}

	for i, rule := range rs.CategoryRules {
		if strings.TrimSpace(rule.Name) == "" {
			return common.ValidationError("rule %d has no name", i)
		}
		if strings.TrimSpace(rule.Category) == "" {
			return common.ValidationError("rule %q has no category", rule.Name)
		}
		if len(rule.Patterns) == 0 {
			return common.ValidationError("rule %q has no patterns", rule.Name)
		}
		for _, p := range rule.Patterns {
			if strings.TrimSpace(p) == "" {
				return common.ValidationError("rule %q has a blank pattern", rule.Name)
			}
		}
	}
	return nil
}

func validateThreshold(name string, v float64) error {
	if v <= 0 || v > 1 {
		return common.ValidationError("%s must be in (0, 1], got %v", name, v)
	}
	return nil
}
