package domain

import (
	"fmt"
	"strings"
)

// Default policy knobs. None of them is derived; they are starting points an
// operator is expected to tune.
const (
	DefaultSampleLimit         = 100
	DefaultSemanticSampleLimit = 500
	DefaultSemanticThreshold   = 0.8
	DefaultNearEmptyThreshold  = 0.95
	DefaultMinOccurrence       = 3
)

var (
	DefaultConfigurationKeywords = []string{"type", "class", "size", "tier", "mode", "engine", "version"}
	DefaultRedundancyKeywords    = []string{"id", "uuid", "arn", "url", "link", "description", "note", "created", "modified", "updated", "timestamp"}
	DefaultIdentifierKeywords    = []string{"id", "arn"}
	DefaultExplorePatterns       = []string{"price", "cost", "type", "region", "memory", "cpu"}
)

// Settings carries every tunable the analysis engine consults.
type Settings struct {
	SampleLimit         int
	SemanticSampleLimit int
	SemanticThreshold   float64
	NearEmptyThreshold  float64
	MinOccurrence       int

	// Priorities maps a table name to its domain priority substrings.
	Priorities            map[string][]string
	ConfigurationKeywords []string
	RedundancyKeywords    []string
	IdentifierKeywords    []string
	ExplorePatterns       []string
}

// DefaultSettings returns Settings populated with the built-in defaults and no
// per-table priorities.
func DefaultSettings() Settings {
	return Settings{
		SampleLimit:           DefaultSampleLimit,
		SemanticSampleLimit:   DefaultSemanticSampleLimit,
		SemanticThreshold:     DefaultSemanticThreshold,
		NearEmptyThreshold:    DefaultNearEmptyThreshold,
		MinOccurrence:         DefaultMinOccurrence,
		Priorities:            map[string][]string{},
		ConfigurationKeywords: clone(DefaultConfigurationKeywords),
		RedundancyKeywords:    clone(DefaultRedundancyKeywords),
		IdentifierKeywords:    clone(DefaultIdentifierKeywords),
		ExplorePatterns:       clone(DefaultExplorePatterns),
	}
}

// Validate checks that thresholds and limits are in range.
func (s Settings) Validate() error {
	if s.SampleLimit <= 0 {
		return fmt.Errorf("sample limit must be positive, got %d", s.SampleLimit)
	}
	if s.SemanticSampleLimit <= 0 {
		return fmt.Errorf("semantic sample limit must be positive, got %d", s.SemanticSampleLimit)
	}
	if s.SemanticThreshold < 0 || s.SemanticThreshold > 1 {
		return fmt.Errorf("semantic threshold must be within [0, 1], got %v", s.SemanticThreshold)
	}
	if s.NearEmptyThreshold < 0 || s.NearEmptyThreshold > 1 {
		return fmt.Errorf("near-empty threshold must be within [0, 1], got %v", s.NearEmptyThreshold)
	}
	if s.MinOccurrence < 1 {
		return fmt.Errorf("min occurrence must be at least 1, got %d", s.MinOccurrence)
	}
	return nil
}

// PrioritiesFor returns the lower-cased priority substrings configured for table.
func (s Settings) PrioritiesFor(table string) []string {
	return lowerAll(s.Priorities[table])
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(v)
	}
	return out
}
