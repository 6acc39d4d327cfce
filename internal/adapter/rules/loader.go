package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRules []byte

// Default returns the built-in rules.
func Default() (*Rules, error) {
	r, err := Parse(defaultRules)
	if err != nil {
		return nil, fmt.Errorf("built-in rules: %w", err)
	}
	return r, nil
}

// LoadFromFile reads a YAML rules file and returns validated Rules.
func LoadFromFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML rules.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing rules YAML: %w", err)
	}

	if err := validate(&r); err != nil {
		return nil, fmt.Errorf("validating rules: %w", err)
	}

	return &r, nil
}

func validate(r *Rules) error {
	seen := make(map[string]bool, len(r.Tables))
	for i, t := range r.Tables {
		if t == "" {
			return fmt.Errorf("tables[%d] is empty", i)
		}
		if seen[t] {
			return fmt.Errorf("tables contains %q more than once", t)
		}
		seen[t] = true
	}
	for table, list := range r.Priorities {
		if table == "" {
			return fmt.Errorf("priorities contains an empty key")
		}
		if err := noEmpty(fmt.Sprintf("priorities[%q]", table), list); err != nil {
			return err
		}
	}
	lists := []struct {
		key  string
		list []string
	}{
		{"configuration_keywords", r.ConfigurationKeywords},
		{"redundancy_keywords", r.RedundancyKeywords},
		{"identifier_keywords", r.IdentifierKeywords},
		{"explore_patterns", r.ExplorePatterns},
	}
	for _, l := range lists {
		if err := noEmpty(l.key, l.list); err != nil {
			return err
		}
	}
	if r.SemanticThreshold != nil && (*r.SemanticThreshold < 0 || *r.SemanticThreshold > 1) {
		return fmt.Errorf("semantic_threshold: %v is outside [0, 1]", *r.SemanticThreshold)
	}
	if r.NearEmptyThreshold != nil && (*r.NearEmptyThreshold < 0 || *r.NearEmptyThreshold > 1) {
		return fmt.Errorf("near_empty_threshold: %v is outside [0, 1]", *r.NearEmptyThreshold)
	}
	if r.MinOccurrence != nil && *r.MinOccurrence < 1 {
		return fmt.Errorf("min_occurrence: must be at least 1, got %d", *r.MinOccurrence)
	}
	return nil
}

func noEmpty(key string, list []string) error {
	for i, v := range list {
		if v == "" {
			return fmt.Errorf("%s[%d] is empty", key, i)
		}
	}
	return nil
}
