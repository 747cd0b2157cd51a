// Package model defines the core data structures for the paperwork application.
package model

import (
	"time"
)

// Default detection thresholds.
const (
	DefaultMinConfidenceThreshold = 0.6
	DefaultFuzzyMatchThreshold    = 0.8
)

// DetectionRuleSet is a versioned collection of category rules used by recurring
// payment detection. Exactly one rule set is the process-wide default.
type DetectionRuleSet struct {
	CreatedAt     time.Time         `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time         `json:"updated_at" yaml:"-"`
	ID            string            `json:"id" yaml:"id,omitempty"`
	Name          string            `json:"name" yaml:"name"`
	OwnerID       string            `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	CategoryRules []CategoryRule    `json:"category_rules" yaml:"category_rules"`
	Settings      DetectionSettings `json:"settings" yaml:"settings"`
	Version       int               `json:"version" yaml:"version,omitempty"`
	IsDefault     bool              `json:"is_default" yaml:"is_default,omitempty"`
}

// CategoryRule assigns a category and provider to payees matching any pattern.
type CategoryRule struct {
	Name       string   `json:"name" yaml:"name"`
	Category   string   `json:"category" yaml:"category"`
	Provider   string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	RecordType string   `json:"record_type,omitempty" yaml:"record_type,omitempty"`
	Patterns   []string `json:"patterns" yaml:"patterns"`
}

// DetectionSettings holds the thresholds applied during detection.
type DetectionSettings struct {
	MinConfidenceThreshold float64 `json:"min_confidence_threshold" yaml:"min_confidence_threshold"`
	FuzzyMatchThreshold    float64 `json:"fuzzy_match_threshold" yaml:"fuzzy_match_threshold"`
}

// DefaultSettings returns the standard detection thresholds.
func DefaultSettings() DetectionSettings {
	return DetectionSettings{
		MinConfidenceThreshold: DefaultMinConfidenceThreshold,
		FuzzyMatchThreshold:    DefaultFuzzyMatchThreshold,
	}
}

// Clone returns a deep copy so callers can hold a snapshot unaffected by later edits.
func (rs DetectionRuleSet) Clone() DetectionRuleSet {
	out := rs
	out.CategoryRules = make([]CategoryRule, len(rs.CategoryRules))
	for i, rule := range rs.CategoryRules {
		out.CategoryRules[i] = rule
		out.CategoryRules[i].Patterns = append([]string(nil), rule.Patterns...)
	}
	return out
}

// UncategorizedCategory is assigned to payees no rule matches.
const UncategorizedCategory = "uncategorized"
